package main

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	cfg := LoadConfig()
	client := NewBarqClient(cfg)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "atlas",
		Version: "0.1.0",
	}, &mcp.ServerOptions{
		Instructions: "Atlas is the MCP server for the barq FaaS invocation engine. " +
			"It exposes barqd's HTTP API as tools, enabling LLM-driven registration, " +
			"invocation, and inspection of functions and the warm container pool. " +
			"All tools are prefixed with barq_ for clear namespacing.",
	})

	RegisterFunctionTools(server, client)
	RegisterInvokeTools(server, client)
	RegisterRuntimeTools(server, client)
	RegisterHealthTools(server, client)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("Atlas server failed: %v", err)
	}
}
