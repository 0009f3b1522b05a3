package http

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"scantrace/internal/codes"
	"scantrace/internal/config"
	"scantrace/internal/scans"
)

var (
	enricherOnce sync.Once
	enricher     *scans.Enricher
)

// getEnricher lazily builds the shared enrichment resolver. The external geo
// fallback is active only when a lookup URL is configured.
func getEnricher(logger *slog.Logger) *scans.Enricher {
	enricherOnce.Do(func() {
		cfg := config.GetConfig()

		var lookup scans.GeoLookup
		if cfg.GeoLookupURL != "" {
			lookup = &scans.HTTPGeoLookup{
				BaseURL: cfg.GeoLookupURL,
				Client:  &http.Client{Timeout: cfg.GeoLookupTimeout()},
			}
		}
		enricher = scans.NewEnricher(logger, lookup, cfg.GeoLookupTimeout())
	})
	return enricher
}

// requestMeta collects the untrusted request signals the pipeline enriches
// from. Platform geo headers, when present, win over any IP lookup.
func requestMeta(ctx *cartridge.Context) *scans.RequestMeta {
	forwarded := ctx.Get("X-Forwarded-For")
	if forwarded == "" {
		forwarded = ctx.IP()
	}

	country := ctx.Get("X-Vercel-IP-Country")
	if country == "" {
		country = ctx.Get("CF-IPCountry")
	}

	return &scans.RequestMeta{
		UserAgent:    ctx.Get("User-Agent"),
		ForwardedFor: forwarded,
		Geo: scans.GeoHint{
			Country: country,
			Region:  ctx.Get("X-Vercel-IP-Country-Region"),
			City:    ctx.Get("X-Vercel-IP-City"),
		},
	}
}

// ScanRedirectAction handles GET /s/:codeId. It records exactly one scan
// event and redirects to the code's current target. The event write and the
// redirect succeed or fail together.
func ScanRedirectAction(ctx *cartridge.Context) error {
	codeID := ctx.Params("codeId")

	targetURL, err := scans.RecordScan(
		ctx.UserContext(),
		ctx.DBManager,
		ctx.Logger,
		getEnricher(ctx.Logger),
		codeID,
		requestMeta(ctx),
	)
	if err != nil {
		var notFound *codes.CodeNotFoundError
		if errors.As(err, &notFound) {
			return notFoundResponse(ctx)
		}
		ctx.Logger.Error("Failed to record scan",
			slog.String("code_id", codeID), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record scan",
		})
	}

	return ctx.Redirect(targetURL, fiber.StatusFound)
}
