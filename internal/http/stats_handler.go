package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"scantrace/internal/export"
	"scantrace/internal/scans"
	"scantrace/internal/stats"
)

// StatsResponse is the JSON stats document for one tracking code.
type StatsResponse struct {
	ID          string               `json:"id"`
	DisplayName string               `json:"display_name"`
	TargetURL   string               `json:"target_url"`
	CreatedAt   time.Time            `json:"created_at"`
	Counters    stats.Counters       `json:"counters"`
	Daily       []stats.DayCount     `json:"daily"`
	Countries   []stats.CountryCount `json:"countries"`
}

// CodeStatsAction handles GET /api/codes/:codeId/stats.
func CodeStatsAction(ctx *cartridge.Context) error {
	code, err := authorizeRequest(ctx)
	if err != nil {
		return notFoundResponse(ctx)
	}

	db := ctx.DBManager.GetConnection()
	now := time.Now().UTC()

	counters, err := stats.GetCounters(db, code.ID, now)
	if err != nil {
		ctx.Logger.Error("Failed to compute counters",
			slog.String("code_id", code.ID), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute statistics",
		})
	}

	daily, err := stats.GetDailyWindow(db, code.ID, stats.DefaultWindowDays, now)
	if err != nil {
		ctx.Logger.Error("Failed to compute daily window",
			slog.String("code_id", code.ID), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute statistics",
		})
	}

	countries, err := stats.GetCountryBreakdown(db, code.ID)
	if err != nil {
		ctx.Logger.Error("Failed to compute country breakdown",
			slog.String("code_id", code.ID), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute statistics",
		})
	}

	return ctx.JSON(StatsResponse{
		ID:          code.ID,
		DisplayName: code.DisplayName,
		TargetURL:   code.TargetURL,
		CreatedAt:   code.CreatedAt,
		Counters:    counters,
		Daily:       daily,
		Countries:   countries,
	})
}

// sendCSV writes a CSV document with download headers.
func sendCSV(ctx *cartridge.Context, filename, body string) error {
	ctx.Set("Content-Type", "text/csv; charset=utf-8")
	ctx.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	return ctx.SendString(body)
}

// CodeStatsCSVAction handles GET /api/codes/:codeId/stats/csv.
// With year and month query parameters (or mode=month) it exports one
// month's histogram; without them (or with mode=all) it exports every month
// that has scans.
func CodeStatsCSVAction(ctx *cartridge.Context) error {
	code, err := authorizeRequest(ctx)
	if err != nil {
		return notFoundResponse(ctx)
	}

	db := ctx.DBManager.GetConnection()
	mode := ctx.Query("mode")
	yearParam := ctx.Query("year")
	monthParam := ctx.Query("month")

	if mode == "" {
		if yearParam == "" && monthParam == "" {
			mode = "all"
		} else {
			mode = "month"
		}
	}

	switch mode {
	case "all":
		histograms, err := stats.GetAllTimeMonthly(db, code.ID)
		if err != nil {
			ctx.Logger.Error("Failed to compute monthly histograms",
				slog.String("code_id", code.ID), slog.Any("error", err))
			return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to export statistics",
			})
		}
		filename := fmt.Sprintf("scantrace-%s-stats-all.csv", code.ID)
		return sendCSV(ctx, filename, export.RenderAllTimeHistograms(histograms))
	case "month":
		// Single-month export continues below.
	default:
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be month or all",
		})
	}

	year, yearErr := strconv.Atoi(yearParam)
	month, monthErr := strconv.Atoi(monthParam)
	if yearErr != nil || monthErr != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "year and month must be integers",
		})
	}

	histogram, err := stats.GetMonthHistogram(db, code.ID, year, month)
	if err != nil {
		if errors.Is(err, stats.ErrInvalidMonth) {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "month must be between 1 and 12",
			})
		}
		ctx.Logger.Error("Failed to compute month histogram",
			slog.String("code_id", code.ID), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export statistics",
		})
	}

	filename := fmt.Sprintf("scantrace-%s-stats-%04d-%02d.csv", code.ID, year, month)
	return sendCSV(ctx, filename, export.RenderMonthHistogram(histogram))
}

// CodeLogsCSVAction handles GET /api/codes/:codeId/logs/csv and exports the
// full raw scan log.
func CodeLogsCSVAction(ctx *cartridge.Context) error {
	code, err := authorizeRequest(ctx)
	if err != nil {
		return notFoundResponse(ctx)
	}

	db := ctx.DBManager.GetConnection()
	events, err := scans.GetEventsForCode(db, code.ID)
	if err != nil {
		ctx.Logger.Error("Failed to load scan events",
			slog.String("code_id", code.ID), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export scan log",
		})
	}

	filename := fmt.Sprintf("scantrace-%s-logs.csv", code.ID)
	return sendCSV(ctx, filename, export.RenderRawLog(events))
}
