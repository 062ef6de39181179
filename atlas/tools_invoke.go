package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type InvokeFunctionArgs struct {
	FuncID string          `json:"func_id" jsonschema:"Function ID"`
	Event  json.RawMessage `json:"event,omitempty" jsonschema:"JSON event to pass to the function"`
}

func RegisterInvokeTools(s *mcp.Server, c *BarqClient) {
	addToolHelper(s, &mcp.Tool{
		Name:        "barq_invoke_function",
		Description: "Invoke a function and return its output plus execution performance",
	}, c, func(ctx context.Context, args InvokeFunctionArgs, c *BarqClient) (json.RawMessage, error) {
		event := args.Event
		if event == nil {
			event = json.RawMessage(`{}`)
		}
		return c.Post(ctx, fmt.Sprintf("/functions/%s/invoke", args.FuncID), map[string]any{"event": event})
	})
}
