package main

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ListRuntimesArgs struct{}

func RegisterRuntimeTools(s *mcp.Server, c *BarqClient) {
	addToolHelper(s, &mcp.Tool{
		Name:        "barq_list_runtimes",
		Description: "List the runtimes barqd supports",
	}, c, func(ctx context.Context, args ListRuntimesArgs, c *BarqClient) (json.RawMessage, error) {
		return c.Get(ctx, "/runtimes")
	})
}
