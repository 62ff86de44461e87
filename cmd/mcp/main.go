// Marketplace MCP Server - Exposes the trust directory as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/amorce/marketplace/internal/dirclient"
	"github.com/amorce/marketplace/internal/mcpserver"
)

func main() {
	directoryURL := envOrDefault("TRUST_DIRECTORY_URL", "http://localhost:8080")
	adminKey := os.Getenv("DIRECTORY_ADMIN_KEY")

	client := dirclient.New(directoryURL, adminKey)

	s := mcpserver.NewMCPServer(client)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
