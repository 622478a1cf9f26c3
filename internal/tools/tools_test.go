package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yellowpay/payagent/internal/chainsim"
	"github.com/yellowpay/payagent/internal/wallet"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	sim, err := chainsim.New()
	if err != nil {
		t.Fatalf("chainsim.New() error = %v", err)
	}
	t.Cleanup(func() { sim.Close() })
	r, err := NewPaymentRegistry(&wallet.MockSigner{}, sim)
	if err != nil {
		t.Fatalf("NewPaymentRegistry() error = %v", err)
	}
	return r
}

func TestRegistryHasAllTools(t *testing.T) {
	r := newRegistry(t)
	want := []string{
		SendToolName, SwapToolName, ConvertToolName,
		FindRouteToolName, MultiChainBalanceToolName,
		ExploreProtocolsToolName, YellowBalanceToolName,
		ConfirmationToolName,
	}
	for _, name := range want {
		def, err := r.Lookup(name)
		if err != nil {
			t.Errorf("Lookup(%q) error = %v", name, err)
			continue
		}
		if def.Tool.InputSchema == nil {
			t.Errorf("tool %q has no input schema", name)
		}
		if def.Kind != KindConfirmation && def.Execute == nil {
			t.Errorf("tool %q has no callback", name)
		}
	}
	if got := len(r.Definitions()); got != len(want) {
		t.Errorf("registry has %d tools, want %d", got, len(want))
	}
}

func TestEveryKindHasExactlyOneTool(t *testing.T) {
	r := newRegistry(t)
	byKind := map[Kind]int{}
	for _, def := range r.Definitions() {
		byKind[def.Kind]++
	}
	for _, k := range AllKinds {
		if byKind[k] != 1 {
			t.Errorf("kind %v has %d tools, want 1", k, byKind[k])
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Lookup("transmogrify")
	var unknownErr *UnknownToolError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("Lookup() error = %v, want UnknownToolError", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := newRegistry(t)
	err := r.Register(confirmationTool())
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("Register() duplicate error = %v", err)
	}
}

func TestValidateArgs(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name    string
		tool    string
		args    string
		wantErr bool
	}{
		{"valid send", SendToolName, `{"recipient":"0xabc","token":"USDC","amount":250,"chain":"polygon"}`, false},
		{"missing field", SendToolName, `{"recipient":"0xabc","token":"USDC","amount":250}`, true},
		{"wrong type", SendToolName, `{"recipient":"0xabc","token":"USDC","amount":"lots","chain":"polygon"}`, true},
		{"not an object", SendToolName, `[1,2,3]`, true},
		{"optional omitted", ExploreProtocolsToolName, `{}`, false},
		{"unknown extra field passes", YellowBalanceToolName, `{"address":"0x1","verbose":true}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := r.ValidateArgs(tc.tool, json.RawMessage(tc.args))
			if tc.wantErr {
				var argErr *ArgumentError
				if !errors.As(err, &argErr) {
					t.Fatalf("ValidateArgs() error = %v, want ArgumentError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateArgs() error = %v", err)
			}
		})
	}
}

func TestSendCallbackProducesReceipt(t *testing.T) {
	r := newRegistry(t)
	def, _ := r.Lookup(SendToolName)

	args := json.RawMessage(`{"recipient":"0xabc","token":"USDC","amount":250,"chain":"polygon"}`)
	msg, err := def.Execute.Call(context.Background(), args, "call-1")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if msg.ToolResultError {
		t.Fatal("Call() flagged result as error")
	}
	if len(msg.Blocks) != 1 || msg.Blocks[0].ID != "call-1" {
		t.Fatalf("blocks = %+v, want single block for call-1", msg.Blocks)
	}

	var result SendResult
	if err := json.Unmarshal([]byte(msg.Blocks[0].Content.String()), &result); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if !strings.HasPrefix(result.TxHash, "0x") || result.Recipient != "0xabc" {
		t.Errorf("result = %+v", result)
	}
}

func TestSendCallbackPropagatesRejection(t *testing.T) {
	sim, err := chainsim.New()
	if err != nil {
		t.Fatalf("chainsim.New() error = %v", err)
	}
	defer sim.Close()
	r, err := NewPaymentRegistry(&wallet.MockSigner{RejectAll: true}, sim)
	if err != nil {
		t.Fatalf("NewPaymentRegistry() error = %v", err)
	}
	def, _ := r.Lookup(SwapToolName)

	args := json.RawMessage(`{"fromToken":"ETH","toToken":"USDC","amount":1,"chain":"ethereum"}`)
	_, err = def.Execute.Call(context.Background(), args, "call-2")
	if !errors.Is(err, wallet.ErrRejected) {
		t.Fatalf("Call() error = %v, want wallet.ErrRejected", err)
	}
}

func TestReadToolsReturnJSON(t *testing.T) {
	r := newRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, tc := range []struct {
		tool string
		args string
	}{
		{FindRouteToolName, `{"fromChain":"ethereum","toChain":"polygon","token":"USDC","amount":100}`},
		{MultiChainBalanceToolName, `{"address":"0xgrace"}`},
		{ExploreProtocolsToolName, `{"chain":"ethereum"}`},
		{YellowBalanceToolName, `{"address":"0xgrace"}`},
	} {
		def, _ := r.Lookup(tc.tool)
		msg, err := def.Execute.Call(ctx, json.RawMessage(tc.args), "call-x")
		if err != nil {
			t.Errorf("%s: Call() error = %v", tc.tool, err)
			continue
		}
		if !json.Valid([]byte(msg.Blocks[0].Content.String())) {
			t.Errorf("%s: result is not valid JSON: %q", tc.tool, msg.Blocks[0].Content.String())
		}
	}
}

func TestErrorResultFlagsError(t *testing.T) {
	msg := ErrorResult("call-9", "boom")
	if !msg.ToolResultError {
		t.Error("ErrorResult not flagged")
	}
	if msg.Blocks[0].Content.String() != "boom" {
		t.Errorf("content = %q", msg.Blocks[0].Content.String())
	}
}
