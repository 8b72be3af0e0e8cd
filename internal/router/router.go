package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"lexpertease/internal/auth"
	"lexpertease/internal/config"
	"lexpertease/internal/handler"
	appmw "lexpertease/internal/middleware"
	"lexpertease/internal/repository"
	"lexpertease/internal/rpc"
	"lexpertease/internal/telemetry"
)

const healthTimeout = 2 * time.Second

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the shared components routes are built from.
type Dependencies struct {
	Logger  *slog.Logger
	JWT     *auth.JWTService
	Tokens  auth.TokenStoreInterface
	Users   repository.UserRepository
	Metrics *telemetry.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Health maps a dependency name to its check.
	Health map[string]Pinger
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	deps Dependencies,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
) *rpc.Server {
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestLogger(deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Auth-Token"},
		AllowCredentials: true,
	}))

	srv := rpc.NewServer(deps.Logger, deps.Metrics)
	srv.Register(authHandler.Procedures()...)
	srv.Register(adminHandler.Procedures()...)
	e.Validator = srv.Validator()

	e.GET("/healthz", healthHandler(deps.Health))

	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group(rpc.Prefix,
		appmw.JWT(deps.JWT),
		appmw.Identity(deps.Users, deps.Tokens, deps.Logger),
	)
	srv.Mount(api)

	return srv
}

func healthHandler(checks map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "unavailable"
		}
		return c.JSON(status, echo.Map{"status": overall, "checks": results})
	}
}
