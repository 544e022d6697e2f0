package tax

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
)

// Handler exposes tax rule admin endpoints.
type Handler struct {
	repo Repository
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Repo Repository
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{repo: cfg.Repo}
}

type upsertInput struct {
	Rate string `json:"rate"`
}

// Upsert handles PUT /api/v1/admin/tax-rules/{region}.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tax repository not configured", nil)
		return
	}
	region := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "region")))
	if region == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "region is required", nil)
		return
	}
	var in upsertInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(in.Rate))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tax rate", nil)
		return
	}
	rule := Rule{Region: region, Rate: rate, UpdatedAt: time.Now().UTC()}
	if err := rule.Validate(); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.repo.Save(r.Context(), rule); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// Get handles GET /api/v1/admin/tax-rules/{region}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tax repository not configured", nil)
		return
	}
	region := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "region")))
	rule, found, err := h.repo.FindByRegion(r.Context(), region)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if !found {
		common.WriteError(w, common.NotFoundError(common.CodeTaxRuleNotFound, "no tax rule for region "+region))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}
