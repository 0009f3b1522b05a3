// Package scans implements the scan ingestion pipeline: tracking-code
// lookup, enrichment, and the durable append of one ScanEvent per redirect.
package scans

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"scantrace/internal/codes"
	"scantrace/internal/config"
)

// RecordScan validates the tracking-code lookup, builds a ScanEvent with all
// derived fields, persists it, and returns the code's current target URL for
// the redirect.
//
// The log write and the redirect succeed or fail together: a persistence
// failure aborts the request and no redirect is issued. No retries happen
// here; retry policy belongs to the caller.
func RecordScan(ctx context.Context, dbManager cartridge.DBManager, logger *slog.Logger, enricher *Enricher, codeID string, meta *RequestMeta) (string, error) {
	db := dbManager.GetConnection()

	code, err := codes.GetCodeOrNotFound(db, codeID)
	if err != nil {
		return "", err
	}

	scannedAt := time.Now().UTC()

	ip := ClientIP(meta.ForwardedFor)
	enrichment := enricher.Enrich(ctx, meta, ip)

	event := &ScanEvent{
		ID:             uuid.NewString(),
		CodeID:         code.ID,
		ScannedAt:      scannedAt,
		UserAgent:      meta.UserAgent,
		IPHash:         HashIP(ip, config.GetConfig().PrivateKey),
		DeviceType:     enrichment.DeviceType,
		OS:             enrichment.OS,
		Browser:        enrichment.Browser,
		Country:        enrichment.Country,
		Region:         enrichment.Region,
		City:           enrichment.City,
		HourOfDayLocal: ReportingHour(scannedAt),
		CreatedAt:      scannedAt,
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		logger.Error("Failed to store scan event",
			slog.String("code_id", code.ID),
			slog.Any("error", err))
		return "", fmt.Errorf("failed to store scan event: %w", err)
	}

	return code.TargetURL, nil
}

// GetEventsForCode retrieves all scan events for a code in ascending
// ScannedAt order.
func GetEventsForCode(db *gorm.DB, codeID string) ([]ScanEvent, error) {
	var events []ScanEvent
	if err := db.Where("code_id = ?", codeID).
		Order("scanned_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load scan events: %w", err)
	}
	return events, nil
}

// CountEventsSince counts events for a code with ScannedAt at or after from.
// A zero from counts all events.
func CountEventsSince(db *gorm.DB, codeID string, from time.Time) (int64, error) {
	query := db.Model(&ScanEvent{}).Where("code_id = ?", codeID)
	if !from.IsZero() {
		query = query.Where("scanned_at >= ?", from)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// GetScanTimesInRange loads only the ScannedAt column for a code within
// [from, to). Zero bounds are open.
func GetScanTimesInRange(db *gorm.DB, codeID string, from, to time.Time) ([]time.Time, error) {
	query := db.Model(&ScanEvent{}).Where("code_id = ?", codeID)
	if !from.IsZero() {
		query = query.Where("scanned_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("scanned_at < ?", to)
	}

	var times []time.Time
	if err := query.Order("scanned_at ASC").Pluck("scanned_at", &times).Error; err != nil {
		return nil, fmt.Errorf("failed to load scan times: %w", err)
	}
	return times, nil
}
