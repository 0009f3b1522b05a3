package export_test

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scantrace/internal/export"
	"scantrace/internal/scans"
	"scantrace/internal/stats"
)

func TestRenderRawLog(t *testing.T) {
	events := []scans.ScanEvent{
		{
			ScannedAt:      time.Date(2026, 5, 10, 3, 4, 5, 0, time.UTC),
			DeviceType:     "mobile",
			OS:             "iOS",
			Browser:        "Safari",
			Country:        "jp",
			Region:         "Tokyo",
			City:           "Shibuya",
			HourOfDayLocal: 12,
			UserAgent:      "Mozilla/5.0 (iPhone) Safari/604.1",
		},
		{
			ScannedAt:      time.Date(2026, 5, 11, 20, 0, 0, 0, time.UTC),
			DeviceType:     "desktop",
			OS:             "Windows",
			Browser:        "Chrome",
			Country:        "us",
			HourOfDayLocal: 5,
			UserAgent:      `Agent "quoted", with comma`,
		},
	}

	body := export.RenderRawLog(events)

	assert.True(t, strings.HasPrefix(body, "\uFEFF"))

	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(body, "\uFEFF"), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "scannedAt,deviceType,os,browser,country,region,city,hour,userAgent", lines[0])

	// Timestamps render in the reporting timezone (UTC+9).
	assert.True(t, strings.HasPrefix(lines[1], "2026-05-10 12:04:05,mobile,iOS,Safari,jp,Tokyo,Shibuya,12,"))
	assert.True(t, strings.HasPrefix(lines[2], "2026-05-12 05:00:00,desktop,"))

	// A strict CSV reader must round-trip the escaped fields.
	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(body, "\uFEFF")))
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, `Agent "quoted", with comma`, records[2][8])
	assert.Equal(t, "us", records[2][4])
}

func TestRenderRawLogEmpty(t *testing.T) {
	body := export.RenderRawLog(nil)
	assert.Equal(t, "\uFEFFscannedAt,deviceType,os,browser,country,region,city,hour,userAgent\n", body)
}

func TestRenderMonthHistogram(t *testing.T) {
	histogram := stats.MonthHistogram{Year: 2026, Month: 2, Days: make([]int64, 28)}
	histogram.Days[0] = 3
	histogram.Days[27] = 1

	body := export.RenderMonthHistogram(histogram)

	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(body, "\uFEFF"), "\n"), "\n")
	require.Len(t, lines, 2)

	labels := strings.Split(lines[0], ",")
	counts := strings.Split(lines[1], ",")
	require.Len(t, labels, 28)
	require.Len(t, counts, 28)

	assert.Equal(t, "2/1", labels[0])
	assert.Equal(t, "2/28", labels[27])
	assert.Equal(t, "3", counts[0])
	assert.Equal(t, "0", counts[1])
	assert.Equal(t, "1", counts[27])
}

func TestRenderAllTimeHistograms(t *testing.T) {
	t.Run("separates month blocks with a blank line", func(t *testing.T) {
		april := stats.MonthHistogram{Year: 2026, Month: 4, Days: make([]int64, 30)}
		june := stats.MonthHistogram{Year: 2026, Month: 6, Days: make([]int64, 30)}
		april.Days[4] = 2

		body := export.RenderAllTimeHistograms([]stats.MonthHistogram{april, june})
		content := strings.TrimPrefix(body, "\uFEFF")

		blocks := strings.Split(strings.TrimSuffix(content, "\n"), "\n\n")
		require.Len(t, blocks, 2)

		assert.True(t, strings.HasPrefix(blocks[0], "4/1,4/2,"))
		assert.True(t, strings.HasPrefix(blocks[1], "6/1,6/2,"))
	})

	t.Run("renders a no data line when empty", func(t *testing.T) {
		body := export.RenderAllTimeHistograms(nil)
		assert.Equal(t, "\uFEFFno data\n", body)
	})
}
