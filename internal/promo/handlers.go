package promo

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/obs"
)

// Handler exposes campaign and promo-code admin endpoints plus redemption.
type Handler struct {
	resolver  *Resolver
	campaigns CampaignRepository
	codes     CodeRepository
	validate  *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Resolver  *Resolver
	Campaigns CampaignRepository
	Codes     CodeRepository
	Validate  *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{resolver: cfg.Resolver, campaigns: cfg.Campaigns, codes: cfg.Codes, validate: cfg.Validate}
}

// CampaignInput is the admin payload for creating a campaign.
type CampaignInput struct {
	Name              string    `json:"name" validate:"required"`
	ProductTemplateID string    `json:"productTemplateId" validate:"required"`
	DiscountType      string    `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue     string    `json:"discountValue" validate:"required"`
	ValidFrom         time.Time `json:"validFrom" validate:"required"`
	ValidTo           time.Time `json:"validTo" validate:"required"`
	UsageLimit        *int32    `json:"usageLimit"`
}

// CreateCampaign handles POST /api/v1/admin/campaigns.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in CampaignInput
	if !h.decode(w, r, &in) {
		return
	}
	value, err := decimal.NewFromString(strings.TrimSpace(in.DiscountValue))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid discount value", nil)
		return
	}
	campaign := Campaign{
		ID:                uuid.New(),
		Name:              strings.TrimSpace(in.Name),
		ProductTemplateID: strings.TrimSpace(in.ProductTemplateID),
		DiscountType:      DiscountType(in.DiscountType),
		DiscountValue:     value,
		ValidFrom:         in.ValidFrom,
		ValidTo:           in.ValidTo,
		UsageLimit:        in.UsageLimit,
	}
	if err := campaign.Validate(); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.campaigns.Save(r.Context(), campaign); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": campaign})
}

// CodeInput is the admin payload for creating a promo code.
type CodeInput struct {
	Code          string    `json:"code" validate:"required"`
	DiscountType  string    `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue string    `json:"discountValue" validate:"required"`
	ValidFrom     time.Time `json:"validFrom" validate:"required"`
	ValidTo       time.Time `json:"validTo" validate:"required"`
	UsageLimit    *int32    `json:"usageLimit"`
	CreatedBy     string    `json:"createdBy"`
}

// CreateCode handles POST /api/v1/admin/promo-codes.
func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var in CodeInput
	if !h.decode(w, r, &in) {
		return
	}
	value, err := decimal.NewFromString(strings.TrimSpace(in.DiscountValue))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid discount value", nil)
		return
	}
	code := Code{
		ID:            uuid.New(),
		Code:          NormalizeCode(in.Code),
		DiscountType:  DiscountType(in.DiscountType),
		DiscountValue: value,
		ValidFrom:     in.ValidFrom,
		ValidTo:       in.ValidTo,
		UsageLimit:    in.UsageLimit,
		CreatedBy:     strings.TrimSpace(in.CreatedBy),
	}
	if err := code.Validate(); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.codes.Save(r.Context(), code); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "promo code already exists", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": code})
}

// Redeem handles POST /api/v1/promo-codes/{code}/redeem. Order placement
// calls this once per use; quote calculation never consumes usage.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	if h.resolver == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo resolver not configured", nil)
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.resolver.Redeem(r.Context(), code); err != nil {
		if obs.PromoRedemptionsTotal != nil {
			obs.PromoRedemptionsTotal.WithLabelValues("rejected").Inc()
		}
		common.WriteError(w, err)
		return
	}
	if obs.PromoRedemptionsTotal != nil {
		obs.PromoRedemptionsTotal.WithLabelValues("ok").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"code": NormalizeCode(code), "status": "redeemed"}})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	if h.validate != nil {
		if err := h.validate.Struct(v); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return false
		}
	}
	return true
}
