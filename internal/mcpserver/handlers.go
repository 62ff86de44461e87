package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/amorce/marketplace/internal/dirclient"
	"github.com/amorce/marketplace/internal/directory"
	"github.com/amorce/marketplace/internal/money"
)

// safeTrustThreshold is the score at or above which a counterparty is
// reported as safe to transact with.
const safeTrustThreshold = 4.5

// defaultMinProfit applies when calculate_profit is called without one.
var defaultMinProfit = money.MustParse("100.00")

// Directory is the slice of the directory client the tools use.
type Directory interface {
	Lookup(ctx context.Context, agentID string) (*directory.AgentProfile, error)
	Discover(ctx context.Context, q dirclient.Query) ([]*directory.AgentProfile, error)
}

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	dir Directory
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(dir Directory) *Handlers {
	return &Handlers{dir: dir}
}

// HandleDiscoverSellers searches the trust directory for sellers.
func (h *Handlers) HandleDiscoverSellers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	capability := req.GetString("capability", "")
	if capability == "" {
		return mcp.NewToolResultError("capability is required"), nil
	}
	minTrust := req.GetFloat("min_trust", 0)

	sellers, err := h.dir.Discover(ctx, dirclient.Query{
		Capability: capability,
		Role:       directory.RoleSeller,
		MinTrust:   minTrust,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to discover sellers: %v", err)), nil
	}

	if len(sellers) == 0 {
		return mcp.NewToolResultText("No sellers found matching your criteria."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d seller(s) for %q:\n\n", len(sellers), capability)
	for i, s := range sellers {
		fmt.Fprintf(&sb, "%d. %s", i+1, s.AgentID)
		if s.Name != "" {
			fmt.Fprintf(&sb, " (%s)", s.Name)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "   Trust: %.1f | Transactions: %d\n", s.TrustScore, s.TotalTransactions)
		if s.Endpoint != "" {
			fmt.Fprintf(&sb, "   Endpoint: %s\n", s.Endpoint)
		}
		if i < len(sellers)-1 {
			sb.WriteString("\n")
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetReputation returns trust data for an agent.
func (h *Handlers) HandleGetReputation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentID := req.GetString("agent_id", "")
	if agentID == "" {
		return mcp.NewToolResultError("agent_id is required"), nil
	}

	profile, err := h.dir.Lookup(ctx, agentID)
	if err != nil {
		if errors.Is(err, dirclient.ErrNotFound) || errors.Is(err, directory.ErrAgentNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Agent %s is not registered in the trust directory.", agentID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get reputation: %v", err)), nil
	}

	risk := "medium"
	recommendation := "verify carefully before transacting"
	if profile.TrustScore >= safeTrustThreshold {
		risk = "low"
		recommendation = "safe to transact"
	}

	var sb strings.Builder
	sb.WriteString("Agent Reputation:\n")
	fmt.Fprintf(&sb, "  Agent: %s\n", profile.AgentID)
	if profile.Name != "" {
		fmt.Fprintf(&sb, "  Name: %s\n", profile.Name)
	}
	fmt.Fprintf(&sb, "  Role: %s\n", profile.Role)
	fmt.Fprintf(&sb, "  Trust Score: %.1f / 5.0\n", profile.TrustScore)
	fmt.Fprintf(&sb, "  Transactions: %d\n", profile.TotalTransactions)
	fmt.Fprintf(&sb, "  Fraud Risk: %s\n", risk)
	fmt.Fprintf(&sb, "  Recommendation: %s\n", recommendation)
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListAgents lists registered agents.
func (h *Handlers) HandleListAgents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	role := req.GetString("role", "")
	limit := req.GetInt("limit", 20)

	agents, err := h.dir.Discover(ctx, dirclient.Query{Role: directory.Role(role)})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list agents: %v", err)), nil
	}
	if len(agents) > limit {
		agents = agents[:limit]
	}

	if len(agents) == 0 {
		return mcp.NewToolResultText("No agents found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d agent(s):\n\n", len(agents))
	for i, a := range agents {
		fmt.Fprintf(&sb, "%d. %s [%s] trust %.1f\n", i+1, a.AgentID, a.Role, a.TrustScore)
		if len(a.Capabilities) > 0 {
			fmt.Fprintf(&sb, "   Capabilities: %s\n", strings.Join(a.Capabilities, ", "))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetMarketPricing returns market price ranges for a product.
//
// Pricing is a static table keyed by product keywords. A production
// deployment would back this with a real pricing feed.
func (h *Handlers) HandleGetMarketPricing(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	product := req.GetString("product", "")
	if product == "" {
		return mcp.NewToolResultError("product is required"), nil
	}

	p := marketPricing(product)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Market pricing for %q:\n", product)
	fmt.Fprintf(&sb, "  eBay:        $%d - $%d (avg $%d)\n", p.ebayMin, p.ebayMax, p.ebayAvg)
	fmt.Fprintf(&sb, "  Craigslist:  $%d - $%d (avg $%d)\n", p.craigsMin, p.craigsMax, p.craigsAvg)
	fmt.Fprintf(&sb, "  Marketplace: $%d - $%d (avg $%d)\n", p.fbMin, p.fbMax, p.fbAvg)
	fmt.Fprintf(&sb, "  Recommended price: $%d\n", p.recommended)
	fmt.Fprintf(&sb, "  Fair-deal threshold: $%d\n", p.fairThreshold)
	fmt.Fprintf(&sb, "  Trend: %s\n", p.trend)
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCheckInventory reports availability and condition for a product.
func (h *Handlers) HandleCheckInventory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	productID := req.GetString("product_id", "")
	if productID == "" {
		return mcp.NewToolResultError("product_id is required"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Inventory for %s:\n", productID)
	sb.WriteString("  Name: MacBook Pro 2020\n")
	sb.WriteString("  Specs: 16GB RAM, 512GB SSD\n")
	sb.WriteString("  Condition: Excellent\n")
	sb.WriteString("  In stock: yes\n")
	sb.WriteString("  Warranty: 30 days\n")
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCalculateProfit computes profit and margin for a sale price.
func (h *Handlers) HandleCalculateProfit(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawSale := req.GetString("sale_price", "")
	rawCost := req.GetString("cost_basis", "")
	if rawSale == "" || rawCost == "" {
		return mcp.NewToolResultError("sale_price and cost_basis are required"), nil
	}
	salePrice, err := money.Parse(rawSale)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid sale_price: %v", err)), nil
	}
	costBasis, err := money.Parse(rawCost)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid cost_basis: %v", err)), nil
	}
	minProfit := defaultMinProfit
	if raw := req.GetString("min_profit", ""); raw != "" {
		minProfit, err = money.Parse(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid min_profit: %v", err)), nil
		}
	}

	profit := salePrice - costBasis
	acceptable := profit >= minProfit

	var marginPct float64
	if salePrice > 0 {
		marginPct = float64(profit) / float64(salePrice) * 100
	}

	var sb strings.Builder
	sb.WriteString("Profit analysis:\n")
	fmt.Fprintf(&sb, "  Sale price: %s\n", salePrice)
	fmt.Fprintf(&sb, "  Cost basis: %s\n", costBasis)
	fmt.Fprintf(&sb, "  Profit: %s (%.1f%% margin)\n", profit, marginPct)
	fmt.Fprintf(&sb, "  Required minimum: %s\n", minProfit)
	if acceptable {
		sb.WriteString("  Verdict: acceptable\n")
	} else {
		sb.WriteString("  Verdict: below required profit, counter instead\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// pricing holds dollar figures for the static market table.
type pricing struct {
	ebayMin, ebayMax, ebayAvg       int
	craigsMin, craigsMax, craigsAvg int
	fbMin, fbMax, fbAvg             int
	recommended, fairThreshold      int
	trend                           string
}

func marketPricing(product string) pricing {
	p := strings.ToLower(product)
	switch {
	case strings.Contains(p, "macbook"):
		return pricing{480, 550, 515, 450, 520, 485, 470, 530, 500, 500, 520, "stable"}
	case strings.Contains(p, "iphone"):
		return pricing{380, 450, 410, 350, 420, 390, 370, 430, 400, 400, 420, "declining"}
	default:
		return pricing{80, 160, 120, 70, 150, 110, 75, 155, 115, 115, 130, "stable"}
	}
}
