package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/chainsim"
	"github.com/yellowpay/payagent/internal/wallet"
)

// Wire names of the payment tools.
const (
	SendToolName              = "send"
	SwapToolName              = "swap"
	ConvertToolName           = "convert"
	FindRouteToolName         = "findCrossChainRoute"
	MultiChainBalanceToolName = "getMultiChainBalance"
	ExploreProtocolsToolName  = "exploreDeFiProtocols"
	YellowBalanceToolName     = "getYellowBalance"
	ConfirmationToolName      = "askForConfirmation"
)

// SendResult is the structured payload of a completed transfer.
type SendResult struct {
	wallet.Receipt
	Recipient string  `json:"recipient"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
}

// SwapResult is the structured payload of a completed swap.
type SwapResult struct {
	wallet.Receipt
	FromToken string  `json:"fromToken"`
	ToToken   string  `json:"toToken"`
	Amount    float64 `json:"amount"`
}

// ConvertResult is the structured payload of a completed conversion.
type ConvertResult struct {
	wallet.Receipt
	Token    string  `json:"token"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// NewPaymentRegistry builds the full tool set backed by the given
// signer and chain simulator.
func NewPaymentRegistry(signer wallet.Signer, sim *chainsim.Simulator) (*Registry, error) {
	r := NewRegistry()
	defs := []Definition{
		sendTool(signer),
		swapTool(signer),
		convertTool(signer),
		findRouteTool(sim),
		multiChainBalanceTool(sim),
		exploreProtocolsTool(sim),
		yellowBalanceTool(sim),
		confirmationTool(),
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func sendTool(signer wallet.Signer) Definition {
	return Definition{
		Kind:     KindSend,
		Mutating: true,
		Tool: gai.Tool{
			Name: SendToolName,
			Description: `Send tokens to a recipient address on a specific chain.
* Only call this after the user has approved the transfer via askForConfirmation.
* The transaction is handed to the user's wallet for signing; the user may still reject it there.`,
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"recipient": {Type: "string", Description: "Recipient wallet address."},
				"token":     {Type: "string", Description: "Token symbol, e.g. USDC."},
				"amount":    {Type: "number", Description: "Amount of tokens to send."},
				"chain":     {Type: "string", Description: "Chain to send on, e.g. polygon."},
			}, "recipient", "token", "amount", "chain"),
		},
		Execute: &sendCallback{signer: signer},
	}
}

type sendCallback struct {
	signer wallet.Signer
}

func (c *sendCallback) Call(ctx context.Context, parametersJSON json.RawMessage, toolCallID string) (gai.Message, error) {
	var args wallet.TransferRequest
	if err := json.Unmarshal(parametersJSON, &args); err != nil {
		return gai.Message{}, fmt.Errorf("parsing send parameters: %w", err)
	}
	receipt, err := c.signer.SignTransfer(ctx, args)
	if err != nil {
		return gai.Message{}, err
	}
	return jsonResult(toolCallID, SendResult{
		Receipt:   receipt,
		Recipient: args.Recipient,
		Token:     args.Token,
		Amount:    args.Amount,
	})
}

func swapTool(signer wallet.Signer) Definition {
	return Definition{
		Kind:     KindSwap,
		Mutating: true,
		Tool: gai.Tool{
			Name: SwapToolName,
			Description: `Swap one token for another on the same chain.
* Only call this after the user has approved the swap via askForConfirmation.`,
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"fromToken": {Type: "string", Description: "Token to swap away."},
				"toToken":   {Type: "string", Description: "Token to receive."},
				"amount":    {Type: "number", Description: "Amount of fromToken to swap."},
				"chain":     {Type: "string", Description: "Chain to swap on."},
			}, "fromToken", "toToken", "amount", "chain"),
		},
		Execute: &swapCallback{signer: signer},
	}
}

type swapCallback struct {
	signer wallet.Signer
}

func (c *swapCallback) Call(ctx context.Context, parametersJSON json.RawMessage, toolCallID string) (gai.Message, error) {
	var args wallet.SwapRequest
	if err := json.Unmarshal(parametersJSON, &args); err != nil {
		return gai.Message{}, fmt.Errorf("parsing swap parameters: %w", err)
	}
	receipt, err := c.signer.SignSwap(ctx, args)
	if err != nil {
		return gai.Message{}, err
	}
	return jsonResult(toolCallID, SwapResult{
		Receipt:   receipt,
		FromToken: args.FromToken,
		ToToken:   args.ToToken,
		Amount:    args.Amount,
	})
}

func convertTool(signer wallet.Signer) Definition {
	return Definition{
		Kind:     KindConvert,
		Mutating: true,
		Tool: gai.Tool{
			Name: ConvertToolName,
			Description: `Convert tokens to fiat currency through the off-ramp.
* Only call this after the user has approved the conversion via askForConfirmation.`,
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"token":    {Type: "string", Description: "Token to convert, e.g. USDC."},
				"currency": {Type: "string", Description: "Target fiat currency, e.g. USD."},
				"amount":   {Type: "number", Description: "Amount of tokens to convert."},
			}, "token", "currency", "amount"),
		},
		Execute: &convertCallback{signer: signer},
	}
}

type convertCallback struct {
	signer wallet.Signer
}

func (c *convertCallback) Call(ctx context.Context, parametersJSON json.RawMessage, toolCallID string) (gai.Message, error) {
	var args wallet.ConvertRequest
	if err := json.Unmarshal(parametersJSON, &args); err != nil {
		return gai.Message{}, fmt.Errorf("parsing convert parameters: %w", err)
	}
	receipt, err := c.signer.SignConvert(ctx, args)
	if err != nil {
		return gai.Message{}, err
	}
	return jsonResult(toolCallID, ConvertResult{
		Receipt:  receipt,
		Token:    args.Token,
		Currency: args.Currency,
		Amount:   args.Amount,
	})
}

func findRouteTool(sim *chainsim.Simulator) Definition {
	return Definition{
		Kind: KindFindRoute,
		Tool: gai.Tool{
			Name: FindRouteToolName,
			Description: `Find the cheapest route to move a token from one chain to another.
* Returns the bridge hops, total fee in USD and estimated settlement time.`,
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"fromChain": {Type: "string", Description: "Source chain."},
				"toChain":   {Type: "string", Description: "Destination chain."},
				"token":     {Type: "string", Description: "Token to move."},
				"amount":    {Type: "number", Description: "Amount to move."},
			}, "fromChain", "toChain", "token", "amount"),
		},
		Execute: &findRouteCallback{sim: sim},
	}
}

type findRouteCallback struct {
	sim *chainsim.Simulator
}

func (c *findRouteCallback) Call(ctx context.Context, parametersJSON json.RawMessage, toolCallID string) (gai.Message, error) {
	var args struct {
		FromChain string  `json:"fromChain"`
		ToChain   string  `json:"toChain"`
		Token     string  `json:"token"`
		Amount    float64 `json:"amount"`
	}
	if err := json.Unmarshal(parametersJSON, &args); err != nil {
		return gai.Message{}, fmt.Errorf("parsing route parameters: %w", err)
	}
	route, err := c.sim.FindRoute(ctx, args.FromChain, args.ToChain, args.Token, args.Amount)
	if err != nil {
		return gai.Message{}, err
	}
	return jsonResult(toolCallID, route)
}

func multiChainBalanceTool(sim *chainsim.Simulator) Definition {
	return Definition{
		Kind: KindMultiChainBalance,
		Tool: gai.Tool{
			Name:        MultiChainBalanceToolName,
			Description: "Get the user's token balances across all supported chains, with USD values.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"address": {Type: "string", Description: "Wallet address to look up."},
			}, "address"),
		},
		Execute: &multiChainBalanceCallback{sim: sim},
	}
}

type multiChainBalanceCallback struct {
	sim *chainsim.Simulator
}

func (c *multiChainBalanceCallback) Call(ctx context.Context, parametersJSON json.RawMessage, toolCallID string) (gai.Message, error) {
	var args struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(parametersJSON, &args); err != nil {
		return gai.Message{}, fmt.Errorf("parsing balance parameters: %w", err)
	}
	report, err := c.sim.Balances(ctx, args.Address)
	if err != nil {
		return gai.Message{}, err
	}
	return jsonResult(toolCallID, report)
}

func exploreProtocolsTool(sim *chainsim.Simulator) Definition {
	return Definition{
		Kind: KindExploreProtocols,
		Tool: gai.Tool{
			Name:        ExploreProtocolsToolName,
			Description: "List DeFi protocols with their TVL and yields, optionally filtered by chain.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"chain": {Type: "string", Description: "Chain to filter by. Omit for all chains."},
			}),
		},
		Execute: &exploreProtocolsCallback{sim: sim},
	}
}

type exploreProtocolsCallback struct {
	sim *chainsim.Simulator
}

func (c *exploreProtocolsCallback) Call(ctx context.Context, parametersJSON json.RawMessage, toolCallID string) (gai.Message, error) {
	var args struct {
		Chain string `json:"chain"`
	}
	if err := json.Unmarshal(parametersJSON, &args); err != nil {
		return gai.Message{}, fmt.Errorf("parsing protocol parameters: %w", err)
	}
	protocols, err := c.sim.Protocols(ctx, args.Chain)
	if err != nil {
		return gai.Message{}, err
	}
	return jsonResult(toolCallID, protocols)
}

func yellowBalanceTool(sim *chainsim.Simulator) Definition {
	return Definition{
		Kind: KindYellowBalance,
		Tool: gai.Tool{
			Name:        YellowBalanceToolName,
			Description: "Get the user's Yellow Network state-channel clearing balance.",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"address": {Type: "string", Description: "Wallet address to look up."},
			}, "address"),
		},
		Execute: &yellowBalanceCallback{sim: sim},
	}
}

type yellowBalanceCallback struct {
	sim *chainsim.Simulator
}

func (c *yellowBalanceCallback) Call(ctx context.Context, parametersJSON json.RawMessage, toolCallID string) (gai.Message, error) {
	var args struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(parametersJSON, &args); err != nil {
		return gai.Message{}, fmt.Errorf("parsing balance parameters: %w", err)
	}
	acct, err := c.sim.YellowBalance(ctx, args.Address)
	if err != nil {
		return gai.Message{}, err
	}
	return jsonResult(toolCallID, acct)
}

func confirmationTool() Definition {
	return Definition{
		Kind: KindConfirmation,
		Tool: gai.Tool{
			Name: ConfirmationToolName,
			Description: `Ask the user to approve an action before performing it.
* Call this before any send, swap or convert.
* The result is "Yes" if the user approved and "No" otherwise. Never proceed with the action after a "No".`,
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"actionType": {Type: "string", Description: "Action awaiting approval: send, swap or convert."},
				"message":    {Type: "string", Description: "Question to show the user, including amounts and recipients."},
				"parameters": {Type: "object", Description: "Arguments of the action, echoed for display."},
			}, "actionType", "message"),
		},
	}
}

// jsonResult wraps a structured payload as a text tool result.
func jsonResult(toolCallID string, payload any) (gai.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return gai.Message{}, fmt.Errorf("marshaling tool result: %w", err)
	}
	return TextResult(toolCallID, string(data)), nil
}

// TextResult builds a successful tool result message.
func TextResult(toolCallID, content string) gai.Message {
	return gai.Message{
		Role: gai.ToolResult,
		Blocks: []gai.Block{
			{
				ID:           toolCallID,
				BlockType:    gai.Content,
				ModalityType: gai.Text,
				MimeType:     "text/plain",
				Content:      gai.Str(content),
			},
		},
	}
}

// ErrorResult builds a tool result message flagged as an error.
func ErrorResult(toolCallID, content string) gai.Message {
	msg := TextResult(toolCallID, content)
	msg.ToolResultError = true
	return msg
}
