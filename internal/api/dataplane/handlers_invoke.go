package dataplane

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oriys/barq/internal/invoker"
	"github.com/oriys/barq/internal/registry"
)

// InvokeFunction handles POST /functions/{id}/invoke. Per spec §7, only a
// FunctionNotFound or RuntimeUnsupported error yields a non-2xx outer
// response; every other failure is reported inside a 200 envelope with
// success=false.
func (h *Handler) InvokeFunction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var event json.RawMessage
	if r.ContentLength > 0 {
		var req struct {
			Event json.RawMessage `json:"event"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		event = req.Event
	}
	if len(event) == 0 {
		event = json.RawMessage(`{}`)
	}

	resp, err := h.Invoker.Invoke(r.Context(), id, event)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrFunctionNotFound), errors.Is(err, invoker.ErrFunctionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, invoker.ErrRuntimeUnsupported):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
