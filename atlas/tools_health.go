package main

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type HealthArgs struct{}
type StatsArgs struct{}

func RegisterHealthTools(s *mcp.Server, c *BarqClient) {
	addToolHelper(s, &mcp.Tool{Name: "barq_health", Description: "Get barqd health status including registry and pool state"}, c,
		func(ctx context.Context, args HealthArgs, c *BarqClient) (json.RawMessage, error) {
			return c.Get(ctx, "/health")
		})

	addToolHelper(s, &mcp.Tool{Name: "barq_health_live", Description: "Liveness probe"}, c,
		func(ctx context.Context, args HealthArgs, c *BarqClient) (json.RawMessage, error) {
			return c.Get(ctx, "/health/live")
		})

	addToolHelper(s, &mcp.Tool{Name: "barq_health_ready", Description: "Readiness probe"}, c,
		func(ctx context.Context, args HealthArgs, c *BarqClient) (json.RawMessage, error) {
			return c.Get(ctx, "/health/ready")
		})

	addToolHelper(s, &mcp.Tool{Name: "barq_pool_stats", Description: "Get warm container pool state (total, free, max)"}, c,
		func(ctx context.Context, args StatsArgs, c *BarqClient) (json.RawMessage, error) {
			return c.Get(ctx, "/stats")
		})
}
