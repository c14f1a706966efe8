package httpserver

import (
	"net/http"

	middleware "github.com/Skotchmaster/agro_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/agro_shop/pkg/tokens"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	OrderHandler *OrderHTTP
	JWTSecret    []byte
	AuthClient   middleware.Refresher
	// Ready reports whether the service can take traffic. Nil means always.
	Ready func() error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				return c.String(http.StatusServiceUnavailable, err.Error())
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)

	privileged := e.Group("/orders", authMW.RequireRole(tokens.RoleAdmin, tokens.RoleSeller))
	privileged.GET("/search", d.OrderHandler.SearchOrders)
	privileged.PUT("/:id/status", d.OrderHandler.UpdateStatus)

	orders := e.Group("/orders", authMW.RequireAuth)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.DELETE("/:id", d.OrderHandler.CancelOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)
}
