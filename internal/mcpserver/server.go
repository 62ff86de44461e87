package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all marketplace tools registered.
func NewMCPServer(dir Directory) *server.MCPServer {
	s := server.NewMCPServer("marketplace", "1.0.0")
	h := NewHandlers(dir)

	s.AddTool(ToolDiscoverSellers, h.HandleDiscoverSellers)
	s.AddTool(ToolGetReputation, h.HandleGetReputation)
	s.AddTool(ToolListAgents, h.HandleListAgents)
	s.AddTool(ToolGetMarketPricing, h.HandleGetMarketPricing)
	s.AddTool(ToolCheckInventory, h.HandleCheckInventory)
	s.AddTool(ToolCalculateProfit, h.HandleCalculateProfit)

	return s
}
