package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scantrace/internal/stats"
	"scantrace/internal/testsupport"
)

func TestGetCounters(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	code := testsupport.CreateTestCode(t, db, "", "https://example.com")

	// 2026-05-10 12:00 in the reporting zone.
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)

	testsupport.CreateScanAt(t, db, code.ID, now)
	testsupport.CreateScanAt(t, db, code.ID, now.Add(-2*time.Hour))
	// 2026-05-09 16:00 UTC is already 2026-05-10 01:00 in the reporting zone.
	testsupport.CreateScanAt(t, db, code.ID, time.Date(2026, 5, 9, 16, 0, 0, 0, time.UTC))
	// Previous reporting day.
	testsupport.CreateScanAt(t, db, code.ID, now.AddDate(0, 0, -1))
	// Outside the 7-day window.
	testsupport.CreateScanAt(t, db, code.ID, now.AddDate(0, 0, -30))

	counters, err := stats.GetCounters(db, code.ID, now)
	require.NoError(t, err)

	assert.Equal(t, int64(3), counters.Today)
	assert.Equal(t, int64(4), counters.Last7Days)
	assert.Equal(t, int64(5), counters.Total)
}

func TestGetCountersWeekBoundary(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	code := testsupport.CreateTestCode(t, db, "", "https://example.com")

	// 2026-05-10 12:00 in the reporting zone, so the 7-day window opens at
	// 2026-05-03 00:00 local.
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	weekStart := time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)

	// One hour inside the window and one second before it.
	testsupport.CreateScanAt(t, db, code.ID, weekStart.Add(time.Hour))
	testsupport.CreateScanAt(t, db, code.ID, weekStart.Add(-time.Second))

	counters, err := stats.GetCounters(db, code.ID, now)
	require.NoError(t, err)

	assert.Equal(t, int64(0), counters.Today)
	assert.Equal(t, int64(1), counters.Last7Days)
	assert.Equal(t, int64(2), counters.Total)
}

func TestGetCountersEmptyCode(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	code := testsupport.CreateTestCode(t, db, "", "https://example.com")

	counters, err := stats.GetCounters(db, code.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, stats.Counters{}, counters)
}

func TestGetDailyWindow(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	code := testsupport.CreateTestCode(t, db, "", "https://example.com")
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)

	testsupport.CreateScanAt(t, db, code.ID, now)
	testsupport.CreateScanAt(t, db, code.ID, now.Add(time.Hour))
	testsupport.CreateScanAt(t, db, code.ID, now.AddDate(0, 0, -2))

	t.Run("zero-fills missing days in ascending order", func(t *testing.T) {
		window, err := stats.GetDailyWindow(db, code.ID, 3, now)
		require.NoError(t, err)
		require.Len(t, window, 3)

		assert.Equal(t, stats.DayCount{Date: "2026-05-08", Count: 1}, window[0])
		assert.Equal(t, stats.DayCount{Date: "2026-05-09", Count: 0}, window[1])
		assert.Equal(t, stats.DayCount{Date: "2026-05-10", Count: 2}, window[2])
	})

	t.Run("defaults to a 14-day window", func(t *testing.T) {
		window, err := stats.GetDailyWindow(db, code.ID, 0, now)
		require.NoError(t, err)
		assert.Len(t, window, stats.DefaultWindowDays)
		assert.Equal(t, "2026-05-10", window[len(window)-1].Date)
	})
}

func TestGetMonthHistogram(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	code := testsupport.CreateTestCode(t, db, "", "https://example.com")

	// 2026-05-10 and 2026-05-12 in the reporting zone.
	testsupport.CreateScanAt(t, db, code.ID, time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC))
	testsupport.CreateScanAt(t, db, code.ID, time.Date(2026, 5, 12, 3, 0, 0, 0, time.UTC))
	testsupport.CreateScanAt(t, db, code.ID, time.Date(2026, 5, 12, 4, 0, 0, 0, time.UTC))

	t.Run("buckets scans by reporting-zone day", func(t *testing.T) {
		histogram, err := stats.GetMonthHistogram(db, code.ID, 2026, 5)
		require.NoError(t, err)

		require.Len(t, histogram.Days, 31)
		assert.Equal(t, int64(1), histogram.Days[9])
		assert.Equal(t, int64(2), histogram.Days[11])
		assert.Equal(t, int64(0), histogram.Days[0])
	})

	t.Run("sizes leap and non-leap Februaries", func(t *testing.T) {
		leap, err := stats.GetMonthHistogram(db, code.ID, 2024, 2)
		require.NoError(t, err)
		assert.Len(t, leap.Days, 29)

		nonLeap, err := stats.GetMonthHistogram(db, code.ID, 2023, 2)
		require.NoError(t, err)
		assert.Len(t, nonLeap.Days, 28)
	})

	t.Run("rejects invalid months", func(t *testing.T) {
		for _, month := range []int{0, 13, -1} {
			_, err := stats.GetMonthHistogram(db, code.ID, 2026, month)
			assert.ErrorIs(t, err, stats.ErrInvalidMonth, "month %d", month)
		}
	})
}

func TestGetAllTimeMonthly(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	code := testsupport.CreateTestCode(t, db, "", "https://example.com")
	other := testsupport.CreateTestCode(t, db, "", "https://example.org")

	testsupport.CreateScanAt(t, db, code.ID, time.Date(2026, 4, 5, 3, 0, 0, 0, time.UTC))
	testsupport.CreateScanAt(t, db, code.ID, time.Date(2026, 6, 20, 3, 0, 0, 0, time.UTC))
	testsupport.CreateScanAt(t, db, code.ID, time.Date(2026, 6, 20, 4, 0, 0, 0, time.UTC))
	testsupport.CreateScanAt(t, db, other.ID, time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC))

	t.Run("partitions by month ascending, skipping empty months", func(t *testing.T) {
		histograms, err := stats.GetAllTimeMonthly(db, code.ID)
		require.NoError(t, err)
		require.Len(t, histograms, 2)

		assert.Equal(t, 2026, histograms[0].Year)
		assert.Equal(t, 4, histograms[0].Month)
		assert.Len(t, histograms[0].Days, 30)
		assert.Equal(t, int64(1), histograms[0].Days[4])

		assert.Equal(t, 6, histograms[1].Month)
		assert.Equal(t, int64(2), histograms[1].Days[19])
	})

	t.Run("returns an empty slice for a code without scans", func(t *testing.T) {
		fresh := testsupport.CreateTestCode(t, db, "", "https://example.net")

		histograms, err := stats.GetAllTimeMonthly(db, fresh.ID)
		require.NoError(t, err)
		assert.Empty(t, histograms)
	})
}

func TestGetCountryBreakdown(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	code := testsupport.CreateTestCode(t, db, "", "https://example.com")
	at := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)

	// CreateScanAt stamps "jp"; add one event from another country and one
	// with no resolved country.
	testsupport.CreateScanAt(t, db, code.ID, at)
	testsupport.CreateScanAt(t, db, code.ID, at.Add(time.Hour))
	us := testsupport.CreateScanAt(t, db, code.ID, at.Add(2*time.Hour))
	require.NoError(t, db.Model(us).Update("country", "us").Error)
	unknown := testsupport.CreateScanAt(t, db, code.ID, at.Add(3*time.Hour))
	require.NoError(t, db.Model(unknown).Update("country", "").Error)

	breakdown, err := stats.GetCountryBreakdown(db, code.ID)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	assert.Equal(t, stats.CountryCount{Code: "jp", Name: "Japan", Count: 2}, breakdown[0])
	assert.Equal(t, stats.CountryCount{Code: "us", Name: "United States", Count: 1}, breakdown[1])
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Japan", stats.CountryName("jp"))
	assert.Equal(t, "Germany", stats.CountryName("DE"))
	assert.Equal(t, "zz", stats.CountryName("zz"))
	assert.Equal(t, "", stats.CountryName(""))
}
