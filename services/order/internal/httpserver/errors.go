package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/agro_shop/services/order/internal/service"
	"github.com/Skotchmaster/agro_shop/services/order/internal/transport"
	"github.com/labstack/echo/v4"
)

// writeError maps a service error to its response and logs one line for it.
func writeError(c echo.Context, l *slog.Logger, event string, err error) error {
	var (
		notFound   *service.ProductNotFoundError
		shortage   *service.InsufficientStockError
		transition *service.InvalidTransitionError
	)

	switch {
	case errors.Is(err, service.ErrValidation):
		l.Warn(event, "status", 400, "reason", "validation", "error", err)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "validation", Message: err.Error()})

	case errors.As(err, &notFound):
		l.Warn(event, "status", 400, "reason", "product_not_found", "product_id", notFound.ProductID)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{
			Error:     "product_not_found",
			ProductID: notFound.ProductID.String(),
		})

	case errors.As(err, &shortage):
		l.Warn(event, "status", 400, "reason", "insufficient_stock", "product_id", shortage.ProductID,
			"requested", shortage.Requested, "available", shortage.Available)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{
			Error:     "insufficient_stock",
			ProductID: shortage.ProductID.String(),
			Requested: &shortage.Requested,
			Available: &shortage.Available,
		})

	case errors.As(err, &transition):
		l.Warn(event, "status", 400, "reason", "invalid_transition", "from", transition.From, "to", transition.To)
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{
			Error: "invalid_transition",
			From:  string(transition.From),
			To:    string(transition.To),
		})

	case errors.Is(err, service.ErrRequestInProgress):
		l.Warn(event, "status", 409, "reason", "request_in_progress", "error", err)
		return c.JSON(http.StatusConflict, transport.ErrorResponse{Error: "request_in_progress"})

	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", 404, "reason", "order_not_found", "error", err)
		return c.JSON(http.StatusNotFound, transport.ErrorResponse{Error: "not_found"})
	}

	var pe *service.PersistenceError
	if errors.As(err, &pe) {
		l.Error(event, "status", 500, "reason", "persistence", "op", pe.Op, "kind", pe.Kind, "error", pe.Err)
	} else {
		l.Error(event, "status", 500, "reason", "internal", "error", err)
	}
	return c.JSON(http.StatusInternalServerError, transport.ErrorResponse{Error: "persistence"})
}
