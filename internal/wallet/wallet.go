// Package wallet abstracts transaction signing.
//
// The agent never holds keys. Every state-changing operation is handed
// to a Signer, which either produces a signed transaction receipt or
// reports that the user rejected the signature request.
package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrRejected is returned by a Signer when the user declines to sign.
var ErrRejected = errors.New("wallet: signature request rejected")

// TransferRequest describes a single-token transfer.
type TransferRequest struct {
	Recipient string  `json:"recipient"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Chain     string  `json:"chain"`
}

// SwapRequest describes a same-chain token swap.
type SwapRequest struct {
	FromToken string  `json:"fromToken"`
	ToToken   string  `json:"toToken"`
	Amount    float64 `json:"amount"`
	Chain     string  `json:"chain"`
}

// ConvertRequest describes an off-ramp conversion to fiat.
type ConvertRequest struct {
	Token    string  `json:"token"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// Receipt is the proof of a signed and broadcast transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	Chain       string `json:"chain"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

// Signer signs payment transactions on behalf of the user.
//
// Implementations must honor ctx cancellation: signing typically
// blocks on a human approving the request in their wallet.
type Signer interface {
	SignTransfer(ctx context.Context, req TransferRequest) (Receipt, error)
	SignSwap(ctx context.Context, req SwapRequest) (Receipt, error)
	SignConvert(ctx context.Context, req ConvertRequest) (Receipt, error)
}

// txHash derives a stable pseudo transaction hash from the request
// payload so repeated runs of the simulator are reproducible.
func txHash(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v|", p)
	}
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
