package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"scantrace/internal/config"
	"scantrace/internal/http"
)

// publicCORSConfig returns the standard CORS configuration for public endpoints.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API.
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting only runs in production; in development and test it
	// would interfere with exercising the endpoints.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Scans arrive one per redirect, so 120/min per IP covers any honest
	// scanner while capping replay floods.
	scanRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Creation mints a new id and token per call, so it gets a tight cap.
	createRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	scanConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{scanRateLimiter},
	}

	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{createRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	managedAPIConfig := &cartridge.RouteConfig{
		EnableCORS: true,
		CORSConfig: publicCORSConfig,
	}

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === SCAN REDIRECT ===
	srv.Get("/s/:codeId", http.ScanRedirectAction, scanConfig)

	// === CODE MANAGEMENT API ===
	srv.Post("/api/codes", http.CodeCreateAction, publicAPIConfig)
	srv.Options("/api/codes", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	// Token-guarded routes; the guard itself lives in the handlers so that
	// denial is indistinguishable from an unknown id.
	srv.Get("/api/codes/:codeId/stats", http.CodeStatsAction, managedAPIConfig)
	srv.Get("/api/codes/:codeId/stats/csv", http.CodeStatsCSVAction, managedAPIConfig)
	srv.Get("/api/codes/:codeId/logs/csv", http.CodeLogsCSVAction, managedAPIConfig)
	srv.Post("/api/codes/:codeId/target", http.CodeUpdateTargetAction, managedAPIConfig)
}
