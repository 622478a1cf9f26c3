// Package render turns settled and pending tool invocations into UI
// cards.
//
// Dispatch is exhaustive over the closed set of tool kinds: a new tool
// kind does not compile its way past the renderer silently, it shows
// up in the exhaustiveness test.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stoewer/go-strcase"

	"github.com/yellowpay/payagent/internal/chainsim"
	"github.com/yellowpay/payagent/internal/invocation"
	"github.com/yellowpay/payagent/internal/tools"
)

// CardType identifies the visual treatment of a card.
type CardType string

const (
	CardWorking      CardType = "working"
	CardConfirm      CardType = "confirm"
	CardAnswered     CardType = "answered"
	CardCancelled    CardType = "cancelled"
	CardError        CardType = "error"
	CardSendReceipt  CardType = "sendReceipt"
	CardSwapReceipt  CardType = "swapReceipt"
	CardConversion   CardType = "conversion"
	CardRoute        CardType = "route"
	CardBalances     CardType = "balances"
	CardProtocols    CardType = "protocols"
	CardYellow       CardType = "yellowBalance"
)

// Card is the renderer-agnostic description of one invocation's UI
// state. The HTTP layer streams it as JSON; the CLI renders it as
// markdown.
type Card struct {
	Type       CardType `json:"type"`
	Tool       string   `json:"tool"`
	ToolCallID string   `json:"toolCallId"`
	Title      string   `json:"title"`
	Body       any      `json:"body,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}

// ConfirmBody is the body of a confirmation card, parsed from the
// askForConfirmation invocation's arguments.
type ConfirmBody struct {
	ActionType string         `json:"actionType"`
	Message    string         `json:"message"`
	Parameters map[string]any `json:"parameters"`
}

// Build renders the card for an invocation in its current state.
func Build(kind tools.Kind, snap invocation.Snapshot) Card {
	inv := snap.Invocation
	card := Card{
		Tool:       inv.Tool,
		ToolCallID: inv.ID,
		Title:      displayTitle(inv.Tool),
	}

	result, settled := snap.Resolved()
	if !settled {
		if kind == tools.KindConfirmation {
			card.Type = CardConfirm
			var req ConfirmBody
			if err := json.Unmarshal(inv.Args, &req); err != nil {
				return errorCard(card, fmt.Sprintf("unreadable confirmation request: %v", err))
			}
			card.Body = req
			return card
		}
		card.Type = CardWorking
		return card
	}

	switch {
	case result.Cancelled:
		card.Type = CardCancelled
		card.Detail = result.Content
		return card
	case result.IsError:
		return errorCard(card, result.Content)
	}

	switch kind {
	case tools.KindSend:
		return structuredCard[tools.SendResult](card, CardSendReceipt, result.Content)
	case tools.KindSwap:
		return structuredCard[tools.SwapResult](card, CardSwapReceipt, result.Content)
	case tools.KindConvert:
		return structuredCard[tools.ConvertResult](card, CardConversion, result.Content)
	case tools.KindFindRoute:
		return structuredCard[chainsim.Route](card, CardRoute, result.Content)
	case tools.KindMultiChainBalance:
		return structuredCard[chainsim.BalanceReport](card, CardBalances, result.Content)
	case tools.KindExploreProtocols:
		return structuredCard[[]chainsim.Protocol](card, CardProtocols, result.Content)
	case tools.KindYellowBalance:
		return structuredCard[chainsim.YellowAccount](card, CardYellow, result.Content)
	case tools.KindConfirmation:
		card.Type = CardAnswered
		card.Detail = result.Content
		return card
	default:
		return errorCard(card, fmt.Sprintf("no renderer for tool kind %v", kind))
	}
}

// structuredCard parses a structured tool result. A result that fails
// to parse renders as an error card carrying the raw payload; it never
// aborts the turn.
func structuredCard[T any](card Card, typ CardType, content string) Card {
	var body T
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		c := errorCard(card, fmt.Sprintf("unreadable %s result: %v", card.Tool, err))
		c.Body = map[string]any{"raw": content}
		return c
	}
	card.Type = typ
	card.Body = body
	return card
}

func errorCard(card Card, detail string) Card {
	card.Type = CardError
	card.Detail = detail
	return card
}

// displayTitle derives a human-readable title from a camelCase tool
// name, e.g. "findCrossChainRoute" becomes "Find cross chain route".
func displayTitle(toolName string) string {
	words := strings.ReplaceAll(strcase.SnakeCase(toolName), "_", " ")
	if words == "" {
		return toolName
	}
	return strings.ToUpper(words[:1]) + words[1:]
}
