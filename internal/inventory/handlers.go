package inventory

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Handler exposes item and stock-ledger endpoints.
type Handler struct {
	Store    Store
	Validate *validator.Validate
}

// Routes mounts the inventory surface on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/movements", h.Movements)
	r.Patch("/{itemID}", h.Update)
	r.Post("/{itemID}/adjust-stock", h.AdjustStock)
}

type createItemRequest struct {
	Name  string  `json:"name" validate:"required,min=1"`
	MRP   float64 `json:"mrp" validate:"gte=0"`
	Stock int64   `json:"stock" validate:"gte=0"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	item, err := h.Store.CreateItem(r.Context(), req.Name, money.FromFloat(req.MRP), req.Stock)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, item)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := common.ParseLimitOffset(r, 100, 500)
	items, err := h.Store.ListItems(r.Context(), r.URL.Query().Get("q"), limit+1, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_offset": common.NextOffset(offset, limit, hasMore),
	})
}

type updateItemRequest struct {
	Name *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	MRP  *float64 `json:"mrp,omitempty" validate:"omitempty,gte=0"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		common.RenderError(w, err)
		return
	}
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	var mrp *decimal.Decimal
	if req.MRP != nil {
		v := money.FromFloat(*req.MRP)
		mrp = &v
	}
	item, err := h.Store.UpdateItem(r.Context(), id, req.Name, mrp)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, item)
}

type adjustStockRequest struct {
	Delta int64  `json:"delta" validate:"required"`
	Note  string `json:"note,omitempty"`
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "itemID")
	if err != nil {
		common.RenderError(w, err)
		return
	}
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	item, err := h.Store.AdjustStock(r.Context(), id, req.Delta, req.Note)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, item)
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	dr, err := common.ParseDateRange(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	var itemID *int64
	if raw := r.URL.Query().Get("item_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item_id", nil)
			return
		}
		itemID = &id
	}
	limit, offset := common.ParseLimitOffset(r, 200, 1000)
	moves, err := h.Store.ListMovements(r.Context(), itemID, dr, limit+1, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	hasMore := len(moves) > limit
	if hasMore {
		moves = moves[:limit]
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"items":       moves,
		"next_offset": common.NextOffset(offset, limit, hasMore),
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ValidationError("invalid " + name)
	}
	return id, nil
}
