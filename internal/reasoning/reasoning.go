// Package reasoning produces the human-readable justification attached to
// each offer. The negotiation core only depends on the Provider interface;
// the default static provider keeps the protocol fully deterministic and
// runnable without any language model behind it.
package reasoning

import (
	"context"
	"fmt"

	"github.com/amorce/marketplace/internal/money"
)

// Verdict is the outcome a justification explains.
type Verdict string

const (
	VerdictOpen    Verdict = "open"
	VerdictAccept  Verdict = "accept"
	VerdictCounter Verdict = "counter"
	VerdictReject  Verdict = "reject"
)

// Decision describes an evaluated offer for the provider to explain.
type Decision struct {
	Role         string  // "buyer" or "seller"
	Verdict      Verdict // accept, counter, or reject
	Item         string
	OfferPrice   money.Amount
	CounterPrice money.Amount // set when Verdict is counter
	Reason       string       // machine reason code, e.g. "over_budget"
}

// Provider turns a decision into a one-sentence justification.
type Provider interface {
	Explain(ctx context.Context, d Decision) (string, error)
}

// StaticProvider is the default deterministic provider. Same decision in,
// same sentence out.
type StaticProvider struct{}

// NewStaticProvider creates the default provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Explain renders a fixed template for the decision. It never fails.
func (p *StaticProvider) Explain(_ context.Context, d Decision) (string, error) {
	switch d.Verdict {
	case VerdictOpen:
		return fmt.Sprintf("Opening at %s for the %s, leaving room to negotiate.", d.OfferPrice, d.Item), nil

	case VerdictAccept:
		if d.Role == "buyer" {
			return fmt.Sprintf("%s fits within my budget, accepting.", d.OfferPrice), nil
		}
		return fmt.Sprintf("%s meets my margin requirements, accepting.", d.OfferPrice), nil

	case VerdictCounter:
		switch d.Reason {
		case "below_min_price":
			return fmt.Sprintf("I can't go below my listed minimum for the %s; countering at %s.", d.Item, d.CounterPrice), nil
		case "below_min_profit":
			return fmt.Sprintf("That price doesn't cover my required margin on the %s; countering at %s.", d.Item, d.CounterPrice), nil
		default:
			return fmt.Sprintf("Countering at %s for the %s.", d.CounterPrice, d.Item), nil
		}

	case VerdictReject:
		if d.Reason == "over_budget" {
			return fmt.Sprintf("%s exceeds my maximum budget for the %s, I have to pass.", d.OfferPrice, d.Item), nil
		}
		return fmt.Sprintf("Rejecting the offer for the %s (%s).", d.Item, d.Reason), nil

	default:
		return "", fmt.Errorf("reasoning: unknown verdict %q", d.Verdict)
	}
}
