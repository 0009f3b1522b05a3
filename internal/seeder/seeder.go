// Package seeder populates the database with sample tracking codes and a
// realistic spread of scan events for local development.
package seeder

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"scantrace/internal/codes"
	"scantrace/internal/config"
	"scantrace/internal/scans"
)

// Seeder handles the data seeding process.
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
	ScanCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, scanCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager: dbManager,
		Logger:    logger,
		ScanCount: scanCount,
	}
}

type sampleCode struct {
	displayName string
	targetURL   string
}

var sampleCodes = []sampleCode{
	{"Product flyer", "https://example.com/products"},
	{"Store window poster", "https://example.com/spring-sale"},
	{"Business card", "https://example.com/contact"},
}

type sampleProfile struct {
	userAgent  string
	deviceType string
	os         string
	browser    string
	country    string
	region     string
	city       string
}

var sampleProfiles = []sampleProfile{
	{
		userAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
		deviceType: "mobile", os: "iOS", browser: "Safari",
		country: "jp", region: "Tokyo", city: "Shibuya",
	},
	{
		userAgent:  "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Mobile Safari/537.36",
		deviceType: "mobile", os: "Android", browser: "Chrome",
		country: "jp", region: "Osaka", city: "Osaka",
	},
	{
		userAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		deviceType: "desktop", os: "Mac OS X", browser: "Chrome",
		country: "us", region: "California", city: "San Francisco",
	},
	{
		userAgent:  "Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
		deviceType: "tablet", os: "iOS", browser: "Safari",
		country: "de", region: "Bavaria", city: "Munich",
	},
}

// Run creates the sample codes and spreads ScanCount events across the last
// 60 days with a recency bias.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding sample data...", slog.Int("scanCount", s.ScanCount))

	db := s.DBManager.GetConnection()
	cfg := config.GetConfig()

	created := make([]*codes.TrackingCode, 0, len(sampleCodes))
	for _, sample := range sampleCodes {
		code, err := codes.CreateCode(db, s.Logger, sample.displayName, sample.targetURL)
		if err != nil {
			return fmt.Errorf("failed to create sample code %q: %w", sample.displayName, err)
		}
		created = append(created, code)
		s.Logger.Info("Created sample code",
			slog.String("id", code.ID),
			slog.String("manage_url", codes.ManageURL(cfg.BaseURL, code.ID, code.ManageToken)))
	}

	for i := 0; i < s.ScanCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		code := created[rand.IntN(len(created))]
		if err := s.insertScan(db, code.ID); err != nil {
			return fmt.Errorf("failed to insert sample scan: %w", err)
		}
	}

	s.Logger.Info("Seeding completed successfully",
		slog.Int("codes", len(created)),
		slog.Int("scans", s.ScanCount),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// insertScan writes one event at a random moment in the last 60 days.
// Recent days get more traffic so counters and windows look lively.
func (s *Seeder) insertScan(db *gorm.DB, codeID string) error {
	profile := sampleProfiles[rand.IntN(len(sampleProfiles))]

	daysBack := rand.IntN(60)
	if rand.IntN(3) == 0 {
		daysBack = rand.IntN(7)
	}
	scannedAt := time.Now().UTC().
		AddDate(0, 0, -daysBack).
		Add(-time.Duration(rand.IntN(24*3600)) * time.Second)

	event := &scans.ScanEvent{
		ID:             uuid.NewString(),
		CodeID:         codeID,
		ScannedAt:      scannedAt,
		UserAgent:      profile.userAgent,
		IPHash:         scans.HashIP(fmt.Sprintf("203.0.113.%d", rand.IntN(255)), config.GetConfig().PrivateKey),
		DeviceType:     profile.deviceType,
		OS:             profile.os,
		Browser:        profile.browser,
		Country:        profile.country,
		Region:         profile.region,
		City:           profile.city,
		HourOfDayLocal: scans.ReportingHour(scannedAt),
		CreatedAt:      scannedAt,
	}

	return sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
}
