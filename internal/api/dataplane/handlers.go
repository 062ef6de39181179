// Package dataplane implements the HTTP surface for function registration,
// invocation, and pool/runtime introspection (spec §6: "named by contract,
// not by URL").
package dataplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/invoker"
	"github.com/oriys/barq/internal/pool"
	"github.com/oriys/barq/internal/registry"
	"github.com/oriys/barq/internal/service"
)

// Handler wires the HTTP layer to the function service, the invoker, and
// the warm pool.
type Handler struct {
	Functions *service.FunctionService
	Invoker   *invoker.Invoker
	Pool      *pool.Pool
	Registry  registry.MetadataStore
}

// RegisterRoutes registers every data-plane route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /functions", h.RegisterFunction)
	mux.HandleFunc("GET /functions", h.ListFunctions)
	mux.HandleFunc("GET /functions/{id}", h.GetFunction)
	mux.HandleFunc("DELETE /functions/{id}", h.DeleteFunction)
	mux.HandleFunc("POST /functions/{id}/invoke", h.InvokeFunction)

	mux.HandleFunc("GET /runtimes", h.ListRuntimes)
	mux.HandleFunc("GET /stats", h.Stats)

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", h.HealthLive)
	mux.HandleFunc("GET /health/ready", h.HealthReady)
}

type registerFunctionRequest struct {
	FuncID     string `json:"func_id"`
	Runtime    string `json:"runtime"`
	Entrypoint string `json:"entrypoint"`
	Code       string `json:"code"`
}

// RegisterFunction handles POST /functions.
func (h *Handler) RegisterFunction(w http.ResponseWriter, r *http.Request) {
	var req registerFunctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fn, err := h.Functions.RegisterFunction(r.Context(), service.RegisterFunctionRequest{
		FuncID:     req.FuncID,
		Runtime:    req.Runtime,
		Entrypoint: req.Entrypoint,
		Code:       req.Code,
	})
	if err != nil {
		if service.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, fn)
}

// GetFunction handles GET /functions/{id}.
func (h *Handler) GetFunction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fn, err := h.Functions.GetFunction(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrFunctionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fn)
}

// ListFunctions handles GET /functions.
func (h *Handler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	fns, err := h.Functions.ListFunctions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if fns == nil {
		fns = []*domain.Function{}
	}
	writeJSON(w, http.StatusOK, fns)
}

// DeleteFunction handles DELETE /functions/{id}.
func (h *Handler) DeleteFunction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Functions.DeleteFunction(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrFunctionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRuntimes handles GET /runtimes (SPEC_FULL.md supplemented feature #3).
func (h *Handler) ListRuntimes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.RuntimeCatalog())
}

// Stats handles GET /stats (spec §6: "stats() -> pool state snapshot").
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Pool.Stats())
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	registryOK := h.Registry.Ping(ctx) == nil
	status := "ok"
	if !registryOK {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"components": map[string]any{
			"registry": registryOK,
			"pool":     h.Pool.Stats(),
		},
	})
}

// HealthLive handles GET /health/live, a liveness probe with no dependency
// checks.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady handles GET /health/ready, a readiness probe that verifies the
// registry connection.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Registry.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  "registry unavailable: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
