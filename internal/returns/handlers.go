package returns

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Handler exposes the returns endpoints. The exchange flow mounts its own
// handler under the same prefix.
type Handler struct {
	Svc      *Service
	Store    Store
	Validate *validator.Validate
}

// Routes mounts the returns surface on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/summary/{billID}", h.Summary)
	r.Get("/{returnID}", h.Get)
}

type returnLineRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

type createReturnRequest struct {
	SourceBillID int64               `json:"source_bill_id" validate:"required,gt=0"`
	Items        []returnLineRequest `json:"items" validate:"required,min=1,dive"`
	RefundMode   string              `json:"refund_mode" validate:"required,oneof=cash online split"`
	RefundCash   float64             `json:"refund_cash" validate:"gte=0"`
	RefundOnline float64             `json:"refund_online" validate:"gte=0"`
	Notes        string              `json:"notes,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	in := CreateReturnInput{
		SourceBillID: req.SourceBillID,
		RefundMode:   RefundMode(req.RefundMode),
		RefundCash:   money.FromFloat(req.RefundCash),
		RefundOnline: money.FromFloat(req.RefundOnline),
		Notes:        req.Notes,
	}
	for _, ln := range req.Items {
		in.Lines = append(in.Lines, LineRequest{ItemID: ln.ItemID, Quantity: ln.Quantity})
	}
	ret, err := h.Svc.CreateReturn(r.Context(), in)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "returnID"), 10, 64)
	if err != nil || id <= 0 {
		common.RenderError(w, common.ValidationError("invalid return id"))
		return
	}
	ret, err := h.Store.GetReturn(r.Context(), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, ret)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	dr, err := common.ParseDateRange(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	limit, offset := common.ParseLimitOffset(r, 50, 200)
	rets, err := h.Store.ListReturns(r.Context(), dr, limit+1, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	hasMore := len(rets) > limit
	if hasMore {
		rets = rets[:limit]
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"items":       rets,
		"next_offset": common.NextOffset(offset, limit, hasMore),
	})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "billID"), 10, 64)
	if err != nil || id <= 0 {
		common.RenderError(w, common.ValidationError("invalid bill id"))
		return
	}
	rows, err := h.Svc.Summary(r.Context(), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"bill_id": id, "items": rows})
}
