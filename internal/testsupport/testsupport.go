package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/karloscodes/cartridge/cache"

	"scantrace/internal"
	"scantrace/internal/codes"
	"scantrace/internal/config"
	"scantrace/internal/scans"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with scantrace's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns all scantrace models for migration
func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&codes.TrackingCode{},
		&scans.ScanEvent{},
	}
}

// SetupTestDB creates a test database with all scantrace models migrated.
// Uses a named in-memory database with cache=shared to allow multiple
// connections to share the same database within a test. Caches the database
// by root test name so subtests share one database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()

	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set SCANTRACE_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	logger := GetLogger()
	dbManager := NewTestDBManager(db)

	return dbManager, logger
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestCode creates a tracking code directly in the database.
func CreateTestCode(t *testing.T, db *gorm.DB, displayName, targetURL string) *codes.TrackingCode {
	t.Helper()

	code, err := codes.CreateCode(db, GetLogger(), displayName, targetURL)
	require.NoError(t, err)
	return code
}

// CreateScanAt inserts one scan event for a code at the given instant.
func CreateScanAt(t *testing.T, db *gorm.DB, codeID string, scannedAt time.Time) *scans.ScanEvent {
	t.Helper()
	return CreateScanWith(t, db, codeID, scannedAt, "desktop", "Mac OS X", "Chrome")
}

// CreateScanWith inserts one scan event with explicit device attributes.
func CreateScanWith(t *testing.T, db *gorm.DB, codeID string, scannedAt time.Time, deviceType, osName, browser string) *scans.ScanEvent {
	t.Helper()

	event := &scans.ScanEvent{
		ID:             uuid.NewString(),
		CodeID:         codeID,
		ScannedAt:      scannedAt.UTC(),
		UserAgent:      "Mozilla/5.0 Test Browser",
		IPHash:         "abcdef0123456789",
		DeviceType:     deviceType,
		OS:             osName,
		Browser:        browser,
		Country:        "jp",
		Region:         "Tokyo",
		City:           "Shibuya",
		HourOfDayLocal: scans.ReportingHour(scannedAt),
		CreatedAt:      scannedAt.UTC(),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	// Match the production server: Sec-Fetch-Site validation is off so that
	// non-browser clients can reach the POST endpoints.
	cfg.EnableSecFetchSite = false

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
