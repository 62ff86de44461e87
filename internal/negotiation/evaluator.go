package negotiation

import (
	"github.com/amorce/marketplace/internal/money"
)

// Verdict is an evaluator outcome.
type Verdict string

const (
	VerdictAccept  Verdict = "accept"
	VerdictCounter Verdict = "counter"
	VerdictReject  Verdict = "reject"
)

// Machine reason codes carried on counter and reject decisions.
const (
	ReasonInvalidPrice   = "invalid_price"
	ReasonBelowMinPrice  = "below_min_price"
	ReasonBelowMinProfit = "below_min_profit"
	ReasonOverBudget     = "over_budget"
)

// Decision is the evaluator's answer to an incoming offer.
type Decision struct {
	Verdict      Verdict
	CounterPrice money.Amount // set when Verdict is VerdictCounter
	Reason       string       // machine reason code
}

// SellerTerms are the seller-side evaluation inputs.
type SellerTerms struct {
	MinPrice  money.Amount
	MinProfit money.Amount
	CostBasis money.Amount
	Markup    money.Amount // added to MinPrice when countering a lowball offer
}

// TrustPenalty widens the seller's required margin when the counterparty's
// trust score sits below the floor. It can only make the seller stricter; it
// never turns a reject into an accept.
type TrustPenalty struct {
	Margin        money.Amount
	LowTrustFloor float64
}

// Applies reports whether the penalty is in effect for the given trust score.
func (p TrustPenalty) Applies(trust float64) bool {
	return p.Margin > 0 && trust < p.LowTrustFloor
}

// EvaluateAsSeller decides the seller's response to a buyer offer.
//
// Below the listed minimum the seller always counters, regardless of profit.
// At or above it, the price must still clear the required profit over cost
// basis; a low-trust counterparty raises that requirement by the penalty
// margin. Prices meeting both bars are accepted, including a price exactly
// equal to the minimum.
func EvaluateAsSeller(price money.Amount, terms SellerTerms, counterpartyTrust float64, penalty TrustPenalty) Decision {
	if !price.IsPositive() {
		return Decision{Verdict: VerdictReject, Reason: ReasonInvalidPrice}
	}

	if price < terms.MinPrice {
		return Decision{
			Verdict:      VerdictCounter,
			CounterPrice: terms.MinPrice + terms.Markup,
			Reason:       ReasonBelowMinPrice,
		}
	}

	requiredProfit := terms.MinProfit
	if penalty.Applies(counterpartyTrust) {
		requiredProfit += penalty.Margin
	}

	if profit := price - terms.CostBasis; profit < requiredProfit {
		return Decision{
			Verdict:      VerdictCounter,
			CounterPrice: terms.CostBasis + requiredProfit,
			Reason:       ReasonBelowMinProfit,
		}
	}

	return Decision{Verdict: VerdictAccept}
}

// EvaluateAsBuyer decides the buyer's response to a seller counter. Buyers
// take a single-round concession: within budget is accepted, over budget is
// rejected, never re-countered.
func EvaluateAsBuyer(counterPrice, maxBudget money.Amount) Decision {
	if !counterPrice.IsPositive() {
		return Decision{Verdict: VerdictReject, Reason: ReasonInvalidPrice}
	}
	if counterPrice > maxBudget {
		return Decision{Verdict: VerdictReject, Reason: ReasonOverBudget}
	}
	return Decision{Verdict: VerdictAccept}
}
