package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type CreateFunctionArgs struct {
	FuncID     string `json:"func_id,omitempty" jsonschema:"Function ID (generated if omitted)"`
	Runtime    string `json:"runtime" jsonschema:"Runtime tag (e.g. python3.11, nodejs20.x, go1.x)"`
	Entrypoint string `json:"entrypoint,omitempty" jsonschema:"Entrypoint (defaults per runtime)"`
	Code       string `json:"code" jsonschema:"Source code for the function"`
}

type ListFunctionsArgs struct{}

type GetFunctionArgs struct {
	FuncID string `json:"func_id" jsonschema:"Function ID"`
}

type DeleteFunctionArgs struct {
	FuncID string `json:"func_id" jsonschema:"Function ID"`
}

func RegisterFunctionTools(s *mcp.Server, c *BarqClient) {
	addToolHelper(s, &mcp.Tool{
		Name:        "barq_register_function",
		Description: "Register a new function",
	}, c, func(ctx context.Context, args CreateFunctionArgs, c *BarqClient) (json.RawMessage, error) {
		return c.Post(ctx, "/functions", args)
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "barq_list_functions",
		Description: "List all registered functions",
	}, c, func(ctx context.Context, args ListFunctionsArgs, c *BarqClient) (json.RawMessage, error) {
		return c.Get(ctx, "/functions")
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "barq_get_function",
		Description: "Get a function's details by ID",
	}, c, func(ctx context.Context, args GetFunctionArgs, c *BarqClient) (json.RawMessage, error) {
		return c.Get(ctx, fmt.Sprintf("/functions/%s", args.FuncID))
	})

	addToolHelper(s, &mcp.Tool{
		Name:        "barq_delete_function",
		Description: "Delete a function by ID",
	}, c, func(ctx context.Context, args DeleteFunctionArgs, c *BarqClient) (json.RawMessage, error) {
		return c.Delete(ctx, fmt.Sprintf("/functions/%s", args.FuncID))
	})
}
