package billing

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Handler exposes the billing endpoints.
type Handler struct {
	Svc      *Service
	Store    Store
	Validate *validator.Validate
}

// Routes mounts the billing surface on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/credit", h.ListCredit)
	r.Get("/payments/summary", h.PaymentsSummary)
	r.Get("/summary/aggregate", h.Aggregate)
	r.Get("/{billID}", h.Get)
	r.Get("/{billID}/payments", h.Payments)
	r.Post("/{billID}/receive-payment", h.ReceivePayment)
}

type createLineRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

type createBillRequest struct {
	Items           []createLineRequest `json:"items" validate:"required,min=1,dive"`
	DiscountPercent float64             `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxPercent      float64             `json:"tax_percent" validate:"gte=0,lte=100"`
	FinalTotal      *float64            `json:"final_total,omitempty" validate:"omitempty,gte=0"`
	PaymentMode     string              `json:"payment_mode" validate:"required,oneof=cash online split credit"`
	PaymentCash     float64             `json:"payment_cash" validate:"gte=0"`
	PaymentOnline   float64             `json:"payment_online" validate:"gte=0"`
	Notes           string              `json:"notes,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	p := CreateBillParams{
		DiscountPercent: money.FromFloat(req.DiscountPercent),
		TaxPercent:      money.FromFloat(req.TaxPercent),
		Mode:            PaymentMode(req.PaymentMode),
		SplitCash:       money.FromFloat(req.PaymentCash),
		SplitOnline:     money.FromFloat(req.PaymentOnline),
		Notes:           req.Notes,
	}
	if req.FinalTotal != nil {
		v := money.FromFloat(*req.FinalTotal)
		p.FinalOverride = &v
	}
	for _, ln := range req.Items {
		p.Lines = append(p.Lines, LineInput{ItemID: ln.ItemID, Quantity: ln.Quantity})
	}
	bill, err := h.Svc.CreateBill(r.Context(), p)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	bill, err := h.Store.GetBill(r.Context(), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, bill)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	dr, err := common.ParseDateRange(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	limit, offset := common.ParseLimitOffset(r, 50, 200)
	bills, err := h.Store.ListBills(r.Context(), dr, r.URL.Query().Get("q"), limit+1, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	hasMore := len(bills) > limit
	if hasMore {
		bills = bills[:limit]
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"items":       bills,
		"next_offset": common.NextOffset(offset, limit, hasMore),
	})
}

func (h *Handler) ListCredit(w http.ResponseWriter, r *http.Request) {
	limit, offset := common.ParseLimitOffset(r, 100, 500)
	bills, err := h.Store.ListCreditBills(r.Context(), limit+1, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	hasMore := len(bills) > limit
	if hasMore {
		bills = bills[:limit]
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"items":       bills,
		"next_offset": common.NextOffset(offset, limit, hasMore),
	})
}

type receivePaymentRequest struct {
	Mode         string  `json:"mode" validate:"required,oneof=cash online split"`
	CashAmount   float64 `json:"cash_amount" validate:"gte=0"`
	OnlineAmount float64 `json:"online_amount" validate:"gte=0"`
	Note         string  `json:"note,omitempty"`
}

func (h *Handler) ReceivePayment(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	var req receivePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	bill, err := h.Svc.ReceivePayment(r.Context(), id, PaymentMode(req.Mode),
		money.FromFloat(req.CashAmount), money.FromFloat(req.OnlineAmount), req.Note)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, bill)
}

func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	id, err := billID(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	// Surface a 404 for unknown bills rather than an empty list.
	if _, err := h.Store.GetBill(r.Context(), id); err != nil {
		common.RenderError(w, err)
		return
	}
	payments, err := h.Store.ListPayments(r.Context(), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"items": payments})
}

func (h *Handler) PaymentsSummary(w http.ResponseWriter, r *http.Request) {
	dr, err := common.ParseDateRange(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	sum, err := h.Store.SummarizePayments(r.Context(), dr)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, sum)
}

func (h *Handler) Aggregate(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "day"
	}
	if period != "day" && period != "month" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "period must be day or month", nil)
		return
	}
	dr, err := common.ParseDateRange(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	buckets, err := h.Store.AggregateSales(r.Context(), period, dr)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"items": buckets})
}

func billID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ValidationError("invalid bill id")
	}
	return id, nil
}
