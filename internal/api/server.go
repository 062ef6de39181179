// Package api assembles the HTTP server: the data-plane handler, the
// tracing middleware, and the Prometheus exposition endpoint.
package api

import (
	"net/http"

	"github.com/oriys/barq/internal/api/dataplane"
	"github.com/oriys/barq/internal/invoker"
	"github.com/oriys/barq/internal/logging"
	"github.com/oriys/barq/internal/metrics"
	"github.com/oriys/barq/internal/observability"
	"github.com/oriys/barq/internal/pool"
	"github.com/oriys/barq/internal/registry"
	"github.com/oriys/barq/internal/service"
)

// ServerConfig contains the dependencies StartHTTPServer wires into the
// data-plane handler.
type ServerConfig struct {
	Registry  registry.MetadataStore
	Functions *service.FunctionService
	Invoker   *invoker.Invoker
	Pool      *pool.Pool
}

// StartHTTPServer builds the mux, wraps it in the tracing middleware, and
// starts serving on addr in the background.
func StartHTTPServer(addr string, cfg ServerConfig) *http.Server {
	mux := http.NewServeMux()

	dpHandler := &dataplane.Handler{
		Functions: cfg.Functions,
		Invoker:   cfg.Invoker,
		Pool:      cfg.Pool,
		Registry:  cfg.Registry,
	}
	dpHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler())

	var handler http.Handler = mux
	handler = observability.HTTPMiddleware(handler)

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()

	return server
}
