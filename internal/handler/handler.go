// Package handler exposes the RPC surface: a single POST /rpc endpoint
// dispatching on a namespaced method name, plus a health probe.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"dinedeals-api/internal/apperr"
	"dinedeals-api/internal/auth"
	"dinedeals-api/internal/models"
	"dinedeals-api/internal/service"
)

// Handler provides the HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
	methods     map[string]method
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	h := &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
	h.methods = h.methodTable()
	return h
}

// accessLevel says who may invoke a method.
type accessLevel int

const (
	accessPublic accessLevel = iota
	accessUser
	accessRestaurant
)

// method is one dispatchable RPC method.
type method struct {
	access accessLevel
	call   func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error)
}

type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// RPC handles POST /rpc. The body names a method and carries its
// params; the method's result is returned as the response body.
func (h *Handler) RPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, apperr.Validation("request body is required"))
			return
		}
		h.respondError(w, apperr.Validation("invalid JSON in request body"))
		return
	}

	m, ok := h.methods[req.Method]
	if !ok {
		h.respondError(w, apperr.NotFound("method"))
		return
	}

	caller, authed := auth.CallerFrom(r.Context())
	switch m.access {
	case accessUser:
		if !authed {
			h.respondError(w, apperr.New(apperr.KindUnauthorized, "authentication required"))
			return
		}
	case accessRestaurant:
		if !authed {
			h.respondError(w, apperr.New(apperr.KindUnauthorized, "authentication required"))
			return
		}
		if !caller.IsRestaurant() {
			h.respondError(w, apperr.New(apperr.KindForbidden, "restaurant account required"))
			return
		}
	}

	result, err := m.call(r.Context(), caller, req.Params)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode unmarshals params into dst; a missing params object decodes
// as the zero value so validation can name the missing fields.
func decode(params json.RawMessage, dst interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return apperr.Validation("invalid params: %v", err)
	}
	return nil
}

func (h *Handler) methodTable() map[string]method {
	return map[string]method{
		"deals.list": {accessPublic, func(ctx context.Context, _ auth.CallerContext, _ json.RawMessage) (interface{}, error) {
			return h.service.ListDeals(ctx)
		}},
		"deals.listActive": {accessPublic, func(ctx context.Context, _ auth.CallerContext, _ json.RawMessage) (interface{}, error) {
			return h.service.ListActiveDeals(ctx)
		}},
		"deals.get": {accessPublic, func(ctx context.Context, _ auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.IDParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.GetDeal(ctx, p.ID)
		}},
		"deals.byRestaurant": {accessPublic, func(ctx context.Context, _ auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.RestaurantParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.DealsByRestaurant(ctx, p.RestaurantID)
		}},
		"deals.search": {accessPublic, func(ctx context.Context, _ auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.SearchDealsParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.SearchDeals(ctx, p)
		}},
		"deals.hot": {accessPublic, func(ctx context.Context, _ auth.CallerContext, _ json.RawMessage) (interface{}, error) {
			return h.service.HotDeals(ctx)
		}},
		"deals.create": {accessRestaurant, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.CreateDealParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.CreateDeal(ctx, caller, p)
		}},
		"deals.update": {accessRestaurant, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.UpdateDealParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.UpdateDeal(ctx, caller, p)
		}},
		"deals.toggleActive": {accessRestaurant, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.IDParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.ToggleDealActive(ctx, caller, p.ID)
		}},
		"deals.delete": {accessRestaurant, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.IDParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			if err := h.service.DeleteDeal(ctx, caller, p.ID); err != nil {
				return nil, err
			}
			return map[string]bool{"deleted": true}, nil
		}},

		"deals.claim": {accessUser, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.ClaimParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.ClaimCoupon(ctx, caller, p.DealID)
		}},
		"coupons.get": {accessUser, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.IDParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.GetCoupon(ctx, caller, p.ID)
		}},
		"coupons.mine": {accessUser, func(ctx context.Context, caller auth.CallerContext, _ json.RawMessage) (interface{}, error) {
			return h.service.MyCoupons(ctx, caller)
		}},
		"coupons.redeem": {accessUser, func(ctx context.Context, _ auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.CodeParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.RedeemCoupon(ctx, p.Code)
		}},
		"coupons.verify": {accessPublic, func(ctx context.Context, _ auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.CodeParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.VerifyCoupon(ctx, p.Code)
		}},

		"orders.create": {accessUser, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.CreateOrderParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.CreateOrder(ctx, caller, p)
		}},
		"orders.get": {accessUser, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.IDParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.GetOrder(ctx, caller, p.ID)
		}},
		"orders.updateStatus": {accessUser, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.UpdateStatusParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.UpdateOrderStatus(ctx, caller, p)
		}},
		"orders.byRestaurant": {accessRestaurant, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.RestaurantParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.OrdersByRestaurant(ctx, caller, p.RestaurantID)
		}},
		"orders.mine": {accessUser, func(ctx context.Context, caller auth.CallerContext, _ json.RawMessage) (interface{}, error) {
			return h.service.MyOrders(ctx, caller)
		}},
		"orders.sendMessage": {accessUser, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.SendMessageParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.SendOrderMessage(ctx, caller, p)
		}},
		"orders.markMessageRead": {accessUser, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.MarkMessageReadParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.MarkOrderMessageRead(ctx, caller, p)
		}},
		"orders.pendingCount": {accessRestaurant, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.RestaurantParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			count, err := h.service.PendingOrderCount(ctx, caller, p.RestaurantID)
			if err != nil {
				return nil, err
			}
			return map[string]int{"count": count}, nil
		}},
		"orders.stats": {accessRestaurant, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.RestaurantParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.OrderStats(ctx, caller, p.RestaurantID)
		}},

		"notifications.list": {accessUser, func(ctx context.Context, caller auth.CallerContext, _ json.RawMessage) (interface{}, error) {
			return h.service.MyNotifications(ctx, caller)
		}},
		"notifications.unread": {accessUser, func(ctx context.Context, caller auth.CallerContext, _ json.RawMessage) (interface{}, error) {
			return h.service.UnreadNotifications(ctx, caller)
		}},
		"notifications.markAsRead": {accessUser, func(ctx context.Context, caller auth.CallerContext, params json.RawMessage) (interface{}, error) {
			var p models.IDParams
			if err := decode(params, &p); err != nil {
				return nil, err
			}
			return h.service.MarkNotificationRead(ctx, caller, p.ID)
		}},
		"notifications.markAllAsRead": {accessUser, func(ctx context.Context, caller auth.CallerContext, _ json.RawMessage) (interface{}, error) {
			if err := h.service.MarkAllNotificationsRead(ctx, caller); err != nil {
				return nil, err
			}
			return map[string]bool{"updated": true}, nil
		}},
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps the error's kind to a status and sends the
// structured body. Untyped errors surface as a generic internal error.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	message := "internal server error"

	var ae *apperr.Error
	if errors.As(err, &ae) {
		message = ae.Message
	}

	h.respondJSON(w, apperr.HTTPStatus(kind), models.ErrorResponse{
		Error: models.ErrorBody{Kind: string(kind), Message: message},
	})
}
