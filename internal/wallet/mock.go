package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockSigner simulates a wallet that signs everything after a short
// delay. It is the default signer for local development and tests.
type MockSigner struct {
	// Latency is how long each signature takes. Zero signs instantly.
	Latency time.Duration

	// RejectAll makes every request fail with ErrRejected.
	RejectAll bool
}

var _ Signer = (*MockSigner)(nil)

func (m *MockSigner) SignTransfer(ctx context.Context, req TransferRequest) (Receipt, error) {
	if err := m.wait(ctx); err != nil {
		return Receipt{}, err
	}
	if m.RejectAll {
		return Receipt{}, ErrRejected
	}
	hash := txHash("transfer", req.Recipient, req.Token, req.Amount, req.Chain)
	return Receipt{TxHash: hash, Chain: req.Chain, ExplorerURL: explorerURL(req.Chain, hash)}, nil
}

func (m *MockSigner) SignSwap(ctx context.Context, req SwapRequest) (Receipt, error) {
	if err := m.wait(ctx); err != nil {
		return Receipt{}, err
	}
	if m.RejectAll {
		return Receipt{}, ErrRejected
	}
	hash := txHash("swap", req.FromToken, req.ToToken, req.Amount, req.Chain)
	return Receipt{TxHash: hash, Chain: req.Chain, ExplorerURL: explorerURL(req.Chain, hash)}, nil
}

func (m *MockSigner) SignConvert(ctx context.Context, req ConvertRequest) (Receipt, error) {
	if err := m.wait(ctx); err != nil {
		return Receipt{}, err
	}
	if m.RejectAll {
		return Receipt{}, ErrRejected
	}
	hash := txHash("convert", req.Token, req.Currency, req.Amount)
	return Receipt{TxHash: hash, Chain: "offramp"}, nil
}

func (m *MockSigner) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func explorerURL(chain, hash string) string {
	switch strings.ToLower(chain) {
	case "ethereum":
		return fmt.Sprintf("https://etherscan.io/tx/%s", hash)
	case "polygon":
		return fmt.Sprintf("https://polygonscan.com/tx/%s", hash)
	case "arbitrum":
		return fmt.Sprintf("https://arbiscan.io/tx/%s", hash)
	case "base":
		return fmt.Sprintf("https://basescan.org/tx/%s", hash)
	default:
		return ""
	}
}
