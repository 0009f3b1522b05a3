package scans

import "time"

// reportingUTCOffset is the fixed UTC+9 offset used for all reporting:
// the stored hour-of-day bucket and every day/month boundary downstream.
const reportingUTCOffset = 9

// ReportingZone is the fixed reporting timezone (UTC+9), independent of
// visitor locale and server locale.
var ReportingZone = time.FixedZone("UTC+9", reportingUTCOffset*60*60)

// UnknownIP is the sentinel used when no client address can be determined.
const UnknownIP = "unknown"

// ScanEvent is one immutable record of a single redirect trigger.
// Events are append-only; no update or delete operation exists.
type ScanEvent struct {
	ID             string    `gorm:"primaryKey"`
	CodeID         string    `gorm:"index:idx_code_scanned;not null"`
	ScannedAt      time.Time `gorm:"index:idx_code_scanned;not null"`
	UserAgent      string
	IPHash         string
	DeviceType     string
	OS             string
	Browser        string
	Country        string
	Region         string
	City           string
	HourOfDayLocal int
	CreatedAt      time.Time
}

// GeoHint holds a best-effort location tuple. Every field is independently
// optional; an empty string means the signal was absent.
type GeoHint struct {
	Country string
	Region  string
	City    string
}

// RequestMeta carries the raw request signals the ingestion pipeline derives
// its enrichment from. The transport layer fills it; nothing here is trusted.
type RequestMeta struct {
	UserAgent    string
	ForwardedFor string
	Geo          GeoHint
}

// Enrichment is the output of the enrichment resolver.
type Enrichment struct {
	DeviceType string
	OS         string
	Browser    string
	Country    string
	Region     string
	City       string
}

// ReportingHour returns the hour of t expressed in the fixed reporting
// timezone. It is computed once at ingestion and stored, never recomputed
// at read time.
func ReportingHour(t time.Time) int {
	return (t.UTC().Hour() + reportingUTCOffset) % 24
}
