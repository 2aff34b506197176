package cashbook

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Handler exposes the cashbook endpoints.
type Handler struct {
	Svc      *Service
	Store    Store
	Validate *validator.Validate
}

// Routes mounts the cashbook surface on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/summary", h.Summary)
	r.Get("/day", h.Day)
	r.Get("/net", h.Net)
	r.Delete("/entry/{entryID}", h.Delete)
	r.Delete("/last", h.DeleteLast)
	r.Delete("/clear-today", h.ClearToday)
	r.Delete("/clear", h.ClearAll)
}

type createEntryRequest struct {
	EntryType string  `json:"entry_type" validate:"required,oneof=WITHDRAWAL EXPENSE"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Note      string  `json:"note,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	entry, err := h.Svc.CreateEntry(r.Context(), EntryType(req.EntryType), money.FromFloat(req.Amount), req.Note)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	dr, err := common.ParseDateRange(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	limit, offset := common.ParseLimitOffset(r, 200, 1000)
	entries, err := h.Store.ListEntries(r.Context(), dr, limit+1, offset)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"items":       entries,
		"next_offset": common.NextOffset(offset, limit, hasMore),
	})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	dr, err := common.ParseDateRange(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	sum, err := h.Store.SummarizeRange(r.Context(), dr)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, sum)
}

// dateParam reads a date query parameter, defaulting to today.
func dateParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now(), nil
	}
	d, err := time.ParseInLocation(common.DateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, common.ValidationError("date must be YYYY-MM-DD")
	}
	return d, nil
}

func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	day, err := h.Svc.Day(r.Context(), date)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, day)
}

func (h *Handler) Net(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	net, err := h.Svc.Net(r.Context(), date)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, net)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil || id <= 0 {
		common.RenderError(w, common.ValidationError("invalid entry id"))
		return
	}
	entry, err := h.Svc.DeleteEntry(r.Context(), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, entry)
}

func (h *Handler) DeleteLast(w http.ResponseWriter, r *http.Request) {
	dr, err := common.ParseDateRange(r)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	entry, err := h.Svc.DeleteLast(r.Context(), dr)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, entry)
}

func (h *Handler) ClearToday(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.ClearToday(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.ClearAll(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"deleted": n})
}
