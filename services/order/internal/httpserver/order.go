package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/agro_shop/pkg/logging"
	middleware "github.com/Skotchmaster/agro_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/agro_shop/services/order/internal/service"
	"github.com/Skotchmaster/agro_shop/services/order/internal/transport"
	"github.com/Skotchmaster/agro_shop/services/order/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const idempotencyHeader = "Idempotency-Key"

type OrderHTTP struct {
	Svc *service.OrderService
}

func currentUser(c echo.Context) (uuid.UUID, error) {
	raw, _ := c.Get(middleware.ContextUserID).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid subject")
	}
	return id, nil
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, err := currentUser(c)
	if err != nil {
		l.Warn("create_order_error", "status", 401, "reason", "no user in context")
		return err
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "validation", Message: "invalid body"})
	}

	order, replayed, err := h.Svc.CreateOrder(ctx, userID, c.Request().Header.Get(idempotencyHeader), req)
	if err != nil {
		return writeError(c, l, "create_order_error", err)
	}

	if replayed {
		l.Info("create_order_replayed", "order_id", order.ID)
		return c.JSON(http.StatusOK, order)
	}
	l.Info("create_order_success", "order_id", order.ID, "total", order.TotalAmount.String())
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, orders, err := h.Svc.ListOrders(ctx, userID, c.QueryParam("status"), offset, limit)
	if err != nil {
		return writeError(c, l, "list_orders_error", err)
	}

	data := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		data = append(data, map[string]any{
			"id":               o.ID,
			"total_amount":     o.TotalAmount,
			"status":           o.Status,
			"shipping_address": o.ShippingAddress,
			"phone":            o.Phone,
			"notes":            o.Notes,
			"item_count":       o.ItemCount,
			"created_at":       o.CreatedAt,
			"updated_at":       o.UpdatedAt,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": data,
		"meta": util.Meta(page, offset, limit, total),
	})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_order_error", "status", 400, "reason", "id not a uuid", "error", err)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "validation", Message: "id not a uuid"})
	}

	order, err := h.Svc.GetOrder(ctx, userID, id)
	if err != nil {
		return writeError(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("cancel_order_error", "status", 400, "reason", "id not a uuid", "error", err)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "validation", Message: "id not a uuid"})
	}

	order, err := h.Svc.CancelOrder(ctx, userID, id)
	if err != nil {
		return writeError(c, l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, transport.CancelResponse{OrderID: order.ID.String(), Status: string(order.Status)})
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("update_status_error", "status", 400, "reason", "id not a uuid", "error", err)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "validation", Message: "id not a uuid"})
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_status_error", "status", 400, "reason", "invalid body", "error", err)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "validation", Message: "invalid body"})
	}

	old, updated, err := h.Svc.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return writeError(c, l, "update_status_error", err)
	}

	l.Info("update_status_success", "order_id", id, "from", old, "to", updated)
	return c.JSON(http.StatusOK, transport.StatusResponse{
		OrderID:   id.String(),
		OldStatus: string(old),
		NewStatus: string(updated),
	})
}

func (h *OrderHTTP) SearchOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.search_orders")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, docs, err := h.Svc.SearchOrders(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		l.Error("search_orders_error", "status", 500, "reason", "search failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": docs,
		"meta": util.Meta(page, offset, limit, total),
	})
}
