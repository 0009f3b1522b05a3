// Package stats computes aggregated scan statistics: rolling counters, the
// recent daily window, and per-month hourly-independent day histograms.
// All day and month boundaries use the fixed reporting timezone; every
// function takes an explicit reference time instead of reading the clock.
package stats

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pariz/gountries"
	"gorm.io/gorm"

	"scantrace/internal/scans"
)

// ErrInvalidMonth is returned when a requested month is outside 1..12.
var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// DefaultWindowDays is the length of the recent daily window.
const DefaultWindowDays = 14

// Counters holds the three rolling scan counters for one tracking code.
type Counters struct {
	Today     int64 `json:"today"`
	Last7Days int64 `json:"last_7_days"`
	Total     int64 `json:"total"`
}

// DayCount is one zero-filled daily bucket, keyed by an ISO date in the
// reporting timezone.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// MonthHistogram holds one scan count per calendar day of a single month.
type MonthHistogram struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Days  []int64 `json:"days"`
}

// startOfDay truncates t to midnight in the reporting timezone. The result
// is converted back to UTC so that SQLite's text timestamp comparisons stay
// consistent with stored values.
func startOfDay(t time.Time) time.Time {
	local := t.In(scans.ReportingZone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, scans.ReportingZone).UTC()
}

// GetCounters computes the today / last-7-days / total counters for a code
// relative to now. Today starts at midnight of now's reporting-zone day;
// the 7-day window reaches back a full seven days before that midnight.
func GetCounters(db *gorm.DB, codeID string, now time.Time) (Counters, error) {
	todayStart := startOfDay(now)
	weekStart := todayStart.AddDate(0, 0, -7)

	today, err := scans.CountEventsSince(db, codeID, todayStart)
	if err != nil {
		return Counters{}, fmt.Errorf("failed to count today's scans: %w", err)
	}

	week, err := scans.CountEventsSince(db, codeID, weekStart)
	if err != nil {
		return Counters{}, fmt.Errorf("failed to count weekly scans: %w", err)
	}

	total, err := scans.CountEventsSince(db, codeID, time.Time{})
	if err != nil {
		return Counters{}, fmt.Errorf("failed to count total scans: %w", err)
	}

	return Counters{Today: today, Last7Days: week, Total: total}, nil
}

// GetDailyWindow returns one bucket per day for the most recent days ending
// at now's reporting-zone day, oldest first. Days without scans appear with
// a zero count. days <= 0 falls back to DefaultWindowDays.
func GetDailyWindow(db *gorm.DB, codeID string, days int, now time.Time) ([]DayCount, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}

	windowEnd := startOfDay(now).AddDate(0, 0, 1)
	windowStart := windowEnd.AddDate(0, 0, -days)

	times, err := scans.GetScanTimesInRange(db, codeID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, days)
	for _, t := range times {
		counts[t.In(scans.ReportingZone).Format("2006-01-02")]++
	}

	window := make([]DayCount, 0, days)
	for i := 0; i < days; i++ {
		date := windowStart.AddDate(0, 0, i).In(scans.ReportingZone).Format("2006-01-02")
		window = append(window, DayCount{Date: date, Count: counts[date]})
	}
	return window, nil
}

// GetMonthHistogram returns one bucket per calendar day of the given month,
// sized to that month's actual length. Returns ErrInvalidMonth for a month
// outside 1..12.
func GetMonthHistogram(db *gorm.DB, codeID string, year, month int) (MonthHistogram, error) {
	if month < 1 || month > 12 {
		return MonthHistogram{}, ErrInvalidMonth
	}

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, scans.ReportingZone)
	monthEnd := monthStart.AddDate(0, 1, 0)
	daysInMonth := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, scans.ReportingZone).Day()

	times, err := scans.GetScanTimesInRange(db, codeID, monthStart.UTC(), monthEnd.UTC())
	if err != nil {
		return MonthHistogram{}, err
	}

	histogram := MonthHistogram{Year: year, Month: month, Days: make([]int64, daysInMonth)}
	for _, t := range times {
		histogram.Days[t.In(scans.ReportingZone).Day()-1]++
	}
	return histogram, nil
}

// GetAllTimeMonthly partitions every scan of a code into months of the
// reporting timezone and returns one histogram per month that has at least
// one scan, ascending. Returns an empty slice when the code has no scans.
func GetAllTimeMonthly(db *gorm.DB, codeID string) ([]MonthHistogram, error) {
	times, err := scans.GetScanTimesInRange(db, codeID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	histograms := make([]MonthHistogram, 0)
	index := make(map[string]int)

	for _, t := range times {
		local := t.In(scans.ReportingZone)
		key := local.Format("2006-01")

		pos, ok := index[key]
		if !ok {
			daysInMonth := time.Date(local.Year(), local.Month()+1, 0, 0, 0, 0, 0, scans.ReportingZone).Day()
			histograms = append(histograms, MonthHistogram{
				Year:  local.Year(),
				Month: int(local.Month()),
				Days:  make([]int64, daysInMonth),
			})
			pos = len(histograms) - 1
			index[key] = pos
		}
		histograms[pos].Days[local.Day()-1]++
	}

	return histograms, nil
}

// CountryCount is one country bucket of the all-time breakdown, with the
// resolved display name for presentation.
type CountryCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// GetCountryBreakdown counts all scans of a code per country, most scanned
// first. Events without a resolved country are excluded.
func GetCountryBreakdown(db *gorm.DB, codeID string) ([]CountryCount, error) {
	breakdown := make([]CountryCount, 0)
	err := db.Model(&scans.ScanEvent{}).
		Select("country AS code, COUNT(*) AS count").
		Where("code_id = ? AND country <> ''", codeID).
		Group("country").
		Order("count DESC, country ASC").
		Scan(&breakdown).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute country breakdown: %w", err)
	}

	for i := range breakdown {
		breakdown[i].Name = CountryName(breakdown[i].Code)
	}
	return breakdown, nil
}

var countryQuery = gountries.New()

// CountryName resolves a lowercase ISO alpha-2 country code to its common
// English name. Unknown or empty codes are returned unchanged.
func CountryName(code string) string {
	if code == "" {
		return ""
	}

	country, err := countryQuery.FindCountryByAlpha(strings.ToUpper(code))
	if err != nil {
		return code
	}
	return country.Name.Common
}
