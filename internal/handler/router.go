package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sefazor/ourphotos-resizer/internal/config"
	"github.com/sefazor/ourphotos-resizer/internal/middleware"
	"go.uber.org/zap"
)

// NewApp wires middleware and routes around the resize handler.
func NewApp(cfg *config.Config, logger *zap.Logger, resizeHandler *ResizeHandler, gatherer prometheus.Gatherer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ourphotos-resizer",
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(logger))

	app.Get("/healthz", resizeHandler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	var chain []fiber.Handler
	if cfg.Server.RateLimitMax > 0 {
		chain = append(chain, limiter.New(limiter.Config{
			Max:        cfg.Server.RateLimitMax,
			Expiration: cfg.Server.RateLimitWindow,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
		}))
	}
	chain = append(chain, resizeHandler.Resize)

	app.Get("/", chain...)
	app.Get("/resize", chain...)

	return app
}
