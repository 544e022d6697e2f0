package quote

import (
	"encoding/json"
	"net/http"

	"github.com/okna-market/pricing-api/internal/common"
)

// Handler exposes the public quote endpoint.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Calculate handles POST /api/v1/quotes/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var cmd CalculateQuoteCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	resp, err := h.service.Calculate(r.Context(), cmd)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, resp)
}
