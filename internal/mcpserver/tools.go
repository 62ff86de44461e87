package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the marketplace MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolDiscoverSellers = mcp.NewTool("discover_sellers",
	mcp.WithDescription(
		"Search the trust directory for seller agents offering a capability. "+
			"Returns sellers ranked by trust score with their transaction history. "+
			"Use this to find a counterparty before opening a negotiation."),
	mcp.WithString("capability",
		mcp.Required(),
		mcp.Description("Capability tag to search for (e.g. 'sell_electronics')")),
	mcp.WithNumber("min_trust",
		mcp.Description("Minimum trust score, 0.0-5.0. Sellers below this are excluded (default 0, no filter).")),
)

var ToolGetReputation = mcp.NewTool("get_reputation",
	mcp.WithDescription(
		"Get the trust score and transaction history for any registered agent. "+
			"Includes a fraud-risk assessment: agents at or above 4.5 are considered safe to transact with."),
	mcp.WithString("agent_id",
		mcp.Required(),
		mcp.Description("The agent's id (e.g. 'agent_henri_7d3e1a5b')")),
)

var ToolListAgents = mcp.NewTool("list_agents",
	mcp.WithDescription(
		"Browse agents registered in the trust directory. "+
			"Optionally filter by role to see only buyers or only sellers."),
	mcp.WithString("role",
		mcp.Description("Filter by role: 'buyer' or 'seller'"),
		mcp.Enum("buyer", "seller")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of agents to return (default 20)")),
)

var ToolGetMarketPricing = mcp.NewTool("get_market_pricing",
	mcp.WithDescription(
		"Get market price ranges for a product across common resale channels. "+
			"Use this to anchor an opening offer or to judge whether a counter-offer is fair."),
	mcp.WithString("product",
		mcp.Required(),
		mcp.Description("Product to price (e.g. 'MacBook Pro 2020')")),
)

var ToolCheckInventory = mcp.NewTool("check_inventory",
	mcp.WithDescription(
		"Check a seller's inventory for product availability, condition, and warranty. "+
			"Sellers use this before committing to a sale."),
	mcp.WithString("product_id",
		mcp.Required(),
		mcp.Description("Product identifier to look up")),
)

var ToolCalculateProfit = mcp.NewTool("calculate_profit",
	mcp.WithDescription(
		"Calculate the profit and margin a sale price would yield over a cost basis. "+
			"Reports whether the sale clears the seller's required minimum profit."),
	mcp.WithString("sale_price",
		mcp.Required(),
		mcp.Description("Proposed sale price (e.g. '450.00')")),
	mcp.WithString("cost_basis",
		mcp.Required(),
		mcp.Description("What the seller paid for the item (e.g. '350.00')")),
	mcp.WithString("min_profit",
		mcp.Description("Required minimum profit (default '100.00')")),
)
