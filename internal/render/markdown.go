package render

import (
	"fmt"
	"strings"

	"github.com/yellowpay/payagent/internal/chainsim"
	"github.com/yellowpay/payagent/internal/tools"
)

// Markdown renders the card for terminal display.
func (c Card) Markdown() string {
	var b strings.Builder

	switch c.Type {
	case CardWorking:
		fmt.Fprintf(&b, "> %s...\n", c.Title)
	case CardConfirm:
		fmt.Fprintf(&b, "**Confirmation needed**\n\n")
		if req, ok := c.Body.(ConfirmBody); ok && req.Message != "" {
			fmt.Fprintf(&b, "%s\n", req.Message)
		}
	case CardAnswered:
		fmt.Fprintf(&b, "> Confirmation: %s\n", c.Detail)
	case CardCancelled:
		fmt.Fprintf(&b, "**%s**\n", c.Detail)
	case CardError:
		fmt.Fprintf(&b, "**%s failed:** %s\n", c.Title, c.Detail)
	case CardSendReceipt:
		if r, ok := c.Body.(tools.SendResult); ok {
			fmt.Fprintf(&b, "**Sent %.4f %s** to `%s` on %s\n\nTx: `%s`\n", r.Amount, r.Token, r.Recipient, r.Chain, r.TxHash)
			if r.ExplorerURL != "" {
				fmt.Fprintf(&b, "%s\n", r.ExplorerURL)
			}
		}
	case CardSwapReceipt:
		if r, ok := c.Body.(tools.SwapResult); ok {
			fmt.Fprintf(&b, "**Swapped %.4f %s for %s** on %s\n\nTx: `%s`\n", r.Amount, r.FromToken, r.ToToken, r.Chain, r.TxHash)
		}
	case CardConversion:
		if r, ok := c.Body.(tools.ConvertResult); ok {
			fmt.Fprintf(&b, "**Converted %.2f %s to %s**\n\nTx: `%s`\n", r.Amount, r.Token, r.Currency, r.TxHash)
		}
	case CardRoute:
		if r, ok := c.Body.(chainsim.Route); ok {
			fmt.Fprintf(&b, "**Route %s → %s** (%s), fee $%.2f, ~%ds\n\n", r.FromChain, r.ToChain, r.Token, r.TotalFee, r.EstSeconds)
			for i, hop := range r.Hops {
				fmt.Fprintf(&b, "%d. %s %s on %s ($%.2f)\n", i+1, hop.Protocol, hop.Action, hop.Chain, hop.FeeUSD)
			}
		}
	case CardBalances:
		if r, ok := c.Body.(chainsim.BalanceReport); ok {
			fmt.Fprintf(&b, "**Balances** (total $%.2f)\n\n", r.TotalUSD)
			for _, chain := range r.Chains {
				fmt.Fprintf(&b, "- %s:", chain.Chain)
				for _, h := range chain.Holdings {
					fmt.Fprintf(&b, " %.4f %s ($%.2f)", h.Amount, h.Token, h.USD)
				}
				fmt.Fprintln(&b)
			}
		}
	case CardProtocols:
		if ps, ok := c.Body.([]chainsim.Protocol); ok {
			fmt.Fprintf(&b, "**DeFi protocols**\n\n")
			for _, p := range ps {
				fmt.Fprintf(&b, "- %s (%s, %s): TVL $%.0f, APY %.1f%%\n", p.Name, p.Chain, p.Category, p.TVLUSD, p.APY)
			}
		}
	case CardYellow:
		if a, ok := c.Body.(chainsim.YellowAccount); ok {
			fmt.Fprintf(&b, "**Yellow Network**: %.2f %s available, %.2f locked, %d channels\n", a.Available, a.Token, a.Locked, a.Channels)
		}
	}

	if b.Len() == 0 {
		fmt.Fprintf(&b, "> %s\n", c.Title)
	}
	return b.String()
}
