package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kondate/lunch-orders/internal/orders"
	"github.com/kondate/lunch-orders/internal/redisx"
)

// userHeader carries the authenticated caller's id; authentication itself is
// an upstream concern.
const userHeader = "X-User-Id"

type OrdersHandler struct {
	Service *orders.Service
	Redis   *redis.Client
	Log     zerolog.Logger
}

type createOrderReq struct {
	MenuID   string              `json:"menu_id"`
	UserInfo orders.UserInfo     `json:"user_info"`
	Options  map[string][]string `json:"options"`
}

type modifyOrderReq struct {
	UserInfo orders.UserInfo     `json:"user_info"`
	Options  map[string][]string `json:"options"`
}

type errorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []orders.FieldError `json:"fields,omitempty"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{number}", h.getOrder)
	r.Put("/orders/{number}", h.modifyOrder)
	r.Delete("/orders/{number}", h.cancelOrder)
	r.Get("/menus/{menuID}/orders", h.listOrders)
	r.Get("/menus/{menuID}/option-counts", h.optionCounts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the closed error set to fixed statuses and stable
// machine-readable codes.
func writeError(w http.ResponseWriter, err error) {
	if fields, ok := orders.AsValidationErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code: "validation_error", Message: "one or more selections are invalid", Fields: fields,
		})
		return
	}

	var status int
	var code string
	switch {
	case errors.Is(err, orders.ErrMenuNotFound):
		status, code = http.StatusNotFound, "menu_not_found"
	case errors.Is(err, orders.ErrOrderNotFound):
		status, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, orders.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, orders.ErrOrderDeadlinePassed):
		status, code = http.StatusBadRequest, "deadline_passed"
	case errors.Is(err, orders.ErrMenuNotAvailable):
		status, code = http.StatusConflict, "menu_not_available"
	case errors.Is(err, orders.ErrMenuSoldOut):
		status, code = http.StatusConflict, "menu_sold_out"
	case errors.Is(err, orders.ErrDuplicateOrder):
		status, code = http.StatusConflict, "duplicate_order"
	case errors.Is(err, orders.ErrAlreadyCancelled):
		status, code = http.StatusConflict, "already_cancelled"
	case errors.Is(err, orders.ErrSequenceExhausted):
		status, code = http.StatusConflict, "sequence_exhausted"
	case errors.Is(err, orders.ErrAllocation):
		status, code = http.StatusServiceUnavailable, "allocation_error"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(userHeader)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "unauthorized", Message: "missing " + userHeader + " header"})
		return "", false
	}
	return id, true
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_json", Message: "invalid json"})
		return
	}
	if req.MenuID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "missing_fields", Message: "menu_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CreateOrder(ctx, userID, req.MenuID, req.UserInfo, req.Options)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first, store on miss
	key := fmt.Sprintf(redisx.KeyOrderCache, number)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	o, err := h.Service.GetOrder(ctx, orders.OrderNumber(number))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) modifyOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	number := chi.URLParam(r, "number")
	var req modifyOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_json", Message: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.ModifyOrder(ctx, orders.OrderNumber(number), userID, req.UserInfo, req.Options)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	number := chi.URLParam(r, "number")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CancelOrder(ctx, orders.OrderNumber(number), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	menuID := chi.URLParam(r, "menuID")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListByMenu(ctx, menuID)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) optionCounts(w http.ResponseWriter, r *http.Request) {
	menuID := chi.URLParam(r, "menuID")
	groups := r.URL.Query()["group"]

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	counts, err := h.Service.CountOptions(ctx, menuID, groups)
	if err != nil {
		writeError(w, err)
		return
	}
	if counts == nil {
		counts = []orders.OptionCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}

// cacheOrder refreshes the read cache after any lifecycle mutation so GET
// reflects the latest state; failures only cost the fast path.
func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderCache, string(o.OrderNumber))
	if err := h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err(); err != nil {
		h.Log.Debug().Err(err).Str("order", string(o.OrderNumber)).Msg("order cache refresh failed")
	}
}
