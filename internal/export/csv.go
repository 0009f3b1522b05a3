// Package export renders scan data as CSV documents. All renderers are pure
// functions over already-loaded data; they never touch the database.
package export

import (
	"fmt"
	"strings"

	"scantrace/internal/scans"
	"scantrace/internal/stats"
)

// utf8BOM prefixes every document so spreadsheet tools detect the encoding.
const utf8BOM = "\uFEFF"

// rawLogHeader is the fixed column set of the raw scan log.
const rawLogHeader = "scannedAt,deviceType,os,browser,country,region,city,hour,userAgent"

// escapeField applies RFC 4180 quoting: fields containing a comma, quote, or
// line break are wrapped in quotes with inner quotes doubled.
func escapeField(field string) string {
	if !strings.ContainsAny(field, ",\"\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

func writeRow(b *strings.Builder, fields ...string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeField(field))
	}
	b.WriteByte('\n')
}

// RenderRawLog renders one row per scan event in ascending scan-time order.
// Timestamps are formatted in the reporting timezone; the hour column is the
// bucket stored at ingestion, not recomputed. Field values are emitted as
// stored so the document round-trips through a CSV parser.
func RenderRawLog(events []scans.ScanEvent) string {
	var b strings.Builder
	b.WriteString(utf8BOM)
	b.WriteString(rawLogHeader)
	b.WriteByte('\n')

	for _, event := range events {
		writeRow(&b,
			event.ScannedAt.In(scans.ReportingZone).Format("2006-01-02 15:04:05"),
			event.DeviceType,
			event.OS,
			event.Browser,
			event.Country,
			event.Region,
			event.City,
			fmt.Sprintf("%d", event.HourOfDayLocal),
			event.UserAgent,
		)
	}
	return b.String()
}

// writeHistogramBlock appends a two-line month block: m/d labels for each
// calendar day, then the matching counts.
func writeHistogramBlock(b *strings.Builder, h stats.MonthHistogram) {
	labels := make([]string, len(h.Days))
	counts := make([]string, len(h.Days))
	for i, count := range h.Days {
		labels[i] = fmt.Sprintf("%d/%d", h.Month, i+1)
		counts[i] = fmt.Sprintf("%d", count)
	}
	b.WriteString(strings.Join(labels, ","))
	b.WriteByte('\n')
	b.WriteString(strings.Join(counts, ","))
	b.WriteByte('\n')
}

// RenderMonthHistogram renders a single month as a label line and a count
// line.
func RenderMonthHistogram(h stats.MonthHistogram) string {
	var b strings.Builder
	b.WriteString(utf8BOM)
	writeHistogramBlock(&b, h)
	return b.String()
}

// RenderAllTimeHistograms renders every month block in order, separated by a
// blank line. A code with no scans yields a single "no data" line.
func RenderAllTimeHistograms(histograms []stats.MonthHistogram) string {
	var b strings.Builder
	b.WriteString(utf8BOM)

	if len(histograms) == 0 {
		b.WriteString("no data\n")
		return b.String()
	}

	for i, h := range histograms {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeHistogramBlock(&b, h)
	}
	return b.String()
}
