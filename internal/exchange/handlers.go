package exchange

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/nikhilpal/kirana-pos/internal/billing"
	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/money"
	"github.com/nikhilpal/kirana-pos/internal/returns"
)

// Handler exposes the exchange endpoint, mounted under the returns prefix.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type exchangeLineRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

type createExchangeRequest struct {
	SourceBillID    int64                 `json:"source_bill_id" validate:"required,gt=0"`
	ReturnItems     []exchangeLineRequest `json:"return_items" validate:"required,min=1,dive"`
	NewItems        []exchangeLineRequest `json:"new_items" validate:"required,min=1,dive"`
	DiscountPercent float64               `json:"discount_percent" validate:"gte=0,lte=100"`
	Override        *float64              `json:"override,omitempty" validate:"omitempty,gte=0"`
	PaymentMode     string                `json:"payment_mode" validate:"required,oneof=cash online"`
	Notes           string                `json:"notes,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	in := CreateExchangeInput{
		SourceBillID:    req.SourceBillID,
		DiscountPercent: money.FromFloat(req.DiscountPercent),
		Mode:            billing.PaymentMode(req.PaymentMode),
		Notes:           req.Notes,
	}
	if req.Override != nil {
		v := money.FromFloat(*req.Override)
		in.Override = &v
	}
	for _, ln := range req.ReturnItems {
		in.ReturnLines = append(in.ReturnLines, returns.LineRequest{ItemID: ln.ItemID, Quantity: ln.Quantity})
	}
	for _, ln := range req.NewItems {
		in.NewLines = append(in.NewLines, billing.LineInput{ItemID: ln.ItemID, Quantity: ln.Quantity})
	}
	res, err := h.Svc.CreateExchange(r.Context(), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, res)
}
