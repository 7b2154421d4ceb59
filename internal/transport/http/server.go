// Package http provides the HTTP server implementation for orderdesk.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/orderdesk/internal/metrics"
	"github.com/xiaot623/orderdesk/internal/service"
	v1 "github.com/xiaot623/orderdesk/internal/transport/http/v1"
)

// NewServer creates the HTTP server. When jwtSecret is set every /v1 route
// requires a bearer token signed with it.
func NewServer(svc *service.Service, m *metrics.Metrics, jwtSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", Health)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	api := e.Group("/v1")
	if jwtSecret != "" {
		api.Use(JWTAuth([]byte(jwtSecret)))
	}
	v1.NewHandler(svc).RegisterRoutes(api)

	return e
}

// Health returns health status.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
