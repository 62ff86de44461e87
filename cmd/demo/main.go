// Command demo runs a complete buyer/seller negotiation in one process.
//
// Sarah wants a used MacBook and will not spend more than $500. Henri sells
// refurbished electronics and will not go below cost plus margin. Both gate
// the final commit behind a human: Henri confirms the sale, Sarah authorizes
// the payment. Pass -yes to auto-approve both prompts.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/amorce/marketplace/internal/agent"
	"github.com/amorce/marketplace/internal/approval"
	"github.com/amorce/marketplace/internal/dirclient"
	"github.com/amorce/marketplace/internal/directory"
	"github.com/amorce/marketplace/internal/identity"
	"github.com/amorce/marketplace/internal/money"
	"github.com/amorce/marketplace/internal/negotiation"
	"github.com/amorce/marketplace/internal/receipts"
)

func main() {
	autoApprove := flag.Bool("yes", false, "auto-approve both human gates")
	flag.Parse()

	if err := run(*autoApprove); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
		os.Exit(1)
	}
}

func run(autoApprove bool) error {
	ctx := context.Background()

	// Everything in-process: the trust directory, the negotiation engine,
	// and the receipt store all share memory stores.
	dirService := directory.NewService(directory.NewMemoryStore())
	dir := &localDirectory{svc: dirService}

	keyLookup := func(ctx context.Context, agentID string) (string, error) {
		profile, err := dirService.Get(ctx, agentID)
		if err != nil {
			return "", err
		}
		return profile.PublicKey, nil
	}
	receiptService := receipts.NewService(receipts.NewMemoryStore(), keyLookup)

	var decider approval.Decider = &consoleDecider{in: bufio.NewReader(os.Stdin)}
	if autoApprove {
		decider = approval.AutoApprover{}
	}

	// Personas
	sarahID, err := identity.New("sarah-buyer")
	if err != nil {
		return err
	}
	henriID, err := identity.New("henri-electronics")
	if err != nil {
		return err
	}

	sarah, err := agent.NewBuyer(sarahID, agent.BuyerConfig{
		Name:           "Sarah",
		MaxBudget:      money.MustParse("500.00"),
		MinSellerTrust: 4.5,
		Capabilities:   []string{"buy_electronics"},
		HITLActions:    []string{"authorize_payment", "share_address"},
	}, dir, decider)
	if err != nil {
		return err
	}
	henri, err := agent.NewSeller(henriID, agent.SellerConfig{
		Name:         "Henri",
		Item:         "MacBook Pro 2020",
		MinPrice:     money.MustParse("450.00"),
		MinProfit:    money.MustParse("100.00"),
		CostBasis:    money.MustParse("350.00"),
		Capabilities: []string{"sell_electronics"},
		HITLActions:  []string{"confirm_sale", "issue_refund"},
	}, dir, decider)
	if err != nil {
		return err
	}

	banner("REGISTRATION")
	if _, err := sarah.Register(ctx); err != nil {
		return fmt.Errorf("register Sarah: %w", err)
	}
	fmt.Printf("  Sarah registered in the trust directory as %s\n", sarah.AgentID())
	if _, err := henri.Register(ctx); err != nil {
		return fmt.Errorf("register Henri: %w", err)
	}
	fmt.Printf("  Henri registered in the trust directory as %s\n", henri.AgentID())

	// Seed reputation the way an established marketplace would have it.
	// New registrations start at the neutral 3.0.
	if err := dirService.SetTrust(ctx, henri.AgentID(), 4.8); err != nil {
		return err
	}
	if err := dirService.SetTrust(ctx, sarah.AgentID(), 4.2); err != nil {
		return err
	}
	fmt.Println("  Seeded reputation: Henri 4.8, Sarah 4.2")

	banner("DISCOVERY")
	seller, err := sarah.FindSeller(ctx, "sell_electronics")
	if err != nil {
		return err
	}
	fmt.Printf("  Sarah searched for sell_electronics with min trust %.1f\n", 4.5)
	fmt.Printf("  Found %s (trust %.1f, %d transactions)\n",
		seller.AgentID, seller.TrustScore, seller.TotalTransactions)

	banner("NEGOTIATION")
	signers := negotiation.NewSignerRegistry()
	svc := negotiation.NewService(negotiation.NewMemoryStore(), dir, signers, money.MustParse("50.00")).
		WithReceipts(receiptService).
		WithTradeRecorder(dirService)
	agent.Bind(svc, signers, sarah, henri)

	session, err := svc.Open(ctx, agent.SessionRequest(sarah, henri))
	if err != nil {
		return err
	}
	fmt.Printf("  Session %s opened for %q\n", session.ID, session.Constraints.Item)

	opening, err := sarah.Open(ctx, session)
	if err != nil {
		return err
	}
	fmt.Printf("  Sarah opens at %s (budget %s)\n", opening.Price, sarah.MaxBudget())

	session, err = svc.SubmitOffer(ctx, opening)
	if err != nil {
		if !errors.Is(err, negotiation.ErrApprovalDenied) {
			return fmt.Errorf("negotiation: %w", err)
		}
		fmt.Printf("\n  A human declined the commit: %v\n", err)
	}

	banner("TRANSCRIPT")
	for _, offer := range session.Offers {
		fmt.Printf("  #%d %s -> %s: %s\n", offer.SequenceNumber, offer.FromAgent, offer.ToAgent, offer.Price)
		if offer.Reasoning != "" {
			fmt.Printf("     %q\n", offer.Reasoning)
		}
	}
	fmt.Printf("  Outcome: %s", session.Status)
	if session.Reason != "" {
		fmt.Printf(" (%s)", session.Reason)
	}
	fmt.Println()

	if session.TransactionID == "" {
		fmt.Println("  No receipt issued")
		return nil
	}

	banner("RECEIPT")
	receipt, err := receiptService.Get(ctx, session.TransactionID)
	if err != nil {
		return err
	}
	fmt.Printf("  Transaction %s\n", receipt.TransactionID)
	fmt.Printf("  %s sold %q to %s for %s\n",
		receipt.SellerID, receipt.ItemDescription, receipt.BuyerID, receipt.FinalPrice)
	fmt.Printf("  Payload hash %s\n", receipt.PayloadHash)

	verdict, err := receiptService.VerifyStored(ctx, receipt.TransactionID)
	if err != nil {
		return err
	}
	if verdict.Valid {
		fmt.Println("  Both signatures verify against directory keys")
	} else {
		fmt.Printf("  VERIFICATION FAILED: %s\n", verdict.Error)
	}

	profile, err := dirService.Get(ctx, henri.AgentID())
	if err != nil {
		return err
	}
	fmt.Printf("  Henri's directory record: trust %.2f, %d transactions\n",
		profile.TrustScore, profile.TotalTransactions)

	return nil
}

func banner(title string) {
	fmt.Printf("\n=== %s %s\n", title, strings.Repeat("=", 60-len(title)))
}

// consoleDecider prompts on stdin for each gated action.
type consoleDecider struct {
	in *bufio.Reader
}

func (d *consoleDecider) Decide(ctx context.Context, req *approval.Request) (approval.Decision, error) {
	fmt.Printf("\n  [HUMAN APPROVAL] %s asks to %s\n", req.AgentID, req.Action)
	for k, v := range req.Details {
		fmt.Printf("    %s: %v\n", k, v)
	}
	fmt.Print("  Approve? [y/N] ")

	line, err := d.in.ReadString('\n')
	if err != nil {
		return approval.Decision{}, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "y" || answer == "yes" {
		return approval.Decision{Approved: true, Reason: "approved at console"}, nil
	}
	return approval.Decision{Approved: false, Reason: "denied at console"}, nil
}

// localDirectory adapts the in-process directory service to the persona and
// negotiation interfaces, replaying the HTTP client's discovery filters.
type localDirectory struct {
	svc *directory.Service
}

func (d *localDirectory) Register(ctx context.Context, req directory.RegisterRequest) (*directory.RegisterResponse, error) {
	profile, created, err := d.svc.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	status := "updated"
	if created {
		status = "registered"
	}
	return &directory.RegisterResponse{AgentID: profile.AgentID, Status: status, Created: created}, nil
}

func (d *localDirectory) Lookup(ctx context.Context, agentID string) (*directory.AgentProfile, error) {
	return d.svc.Get(ctx, agentID)
}

func (d *localDirectory) Discover(ctx context.Context, q dirclient.Query) ([]*directory.AgentProfile, error) {
	all, err := d.svc.List(ctx)
	if err != nil {
		return nil, err
	}
	var matched []*directory.AgentProfile
	for _, p := range all {
		if q.Role != "" && p.Role != q.Role {
			continue
		}
		if p.TrustScore < q.MinTrust {
			continue
		}
		if q.Capability != "" && !hasCapability(p, q.Capability) {
			continue
		}
		matched = append(matched, p)
	}
	// Same deterministic ranking the HTTP client applies.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TrustScore != matched[j].TrustScore {
			return matched[i].TrustScore > matched[j].TrustScore
		}
		if matched[i].TotalTransactions != matched[j].TotalTransactions {
			return matched[i].TotalTransactions > matched[j].TotalTransactions
		}
		return matched[i].AgentID < matched[j].AgentID
	})
	return matched, nil
}

func hasCapability(p *directory.AgentProfile, capability string) bool {
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
