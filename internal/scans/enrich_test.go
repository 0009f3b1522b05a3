package scans_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scantrace/internal/scans"
	"scantrace/internal/testsupport"
)

const (
	uaIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
	uaAndroid = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Mobile Safari/537.36"
	uaIPad    = "Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
	uaMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	uaWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
)

func TestEnrichDeviceClassification(t *testing.T) {
	enricher := scans.NewEnricher(testsupport.GetLogger(), nil, time.Second)

	tests := []struct {
		name       string
		userAgent  string
		deviceType string
	}{
		{"iPhone is mobile", uaIPhone, "mobile"},
		{"Android phone is mobile", uaAndroid, "mobile"},
		{"iPad is tablet", uaIPad, "tablet"},
		{"Mac is desktop", uaMac, "desktop"},
		{"Windows is desktop", uaWindows, "desktop"},
		{"empty user agent defaults to desktop", "", "desktop"},
		{"garbage defaults to desktop", "curl/8.0", "desktop"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			meta := &scans.RequestMeta{UserAgent: tc.userAgent}
			result := enricher.Enrich(context.Background(), meta, scans.UnknownIP)
			assert.Equal(t, tc.deviceType, result.DeviceType)
		})
	}
}

func TestEnrichOSAndBrowser(t *testing.T) {
	enricher := scans.NewEnricher(testsupport.GetLogger(), nil, time.Second)

	meta := &scans.RequestMeta{UserAgent: uaWindows}
	result := enricher.Enrich(context.Background(), meta, scans.UnknownIP)

	assert.Contains(t, result.OS, "Windows")
	assert.Equal(t, "Chrome", result.Browser)
}

func TestEnrichGeoHeadersWin(t *testing.T) {
	enricher := scans.NewEnricher(testsupport.GetLogger(), nil, time.Second)

	meta := &scans.RequestMeta{
		UserAgent: uaMac,
		Geo:       scans.GeoHint{Country: "JP", Region: "Tokyo", City: "Shibuya"},
	}
	result := enricher.Enrich(context.Background(), meta, "203.0.113.7")

	assert.Equal(t, "jp", result.Country)
	assert.Equal(t, "Tokyo", result.Region)
	assert.Equal(t, "Shibuya", result.City)
}

type failingLookup struct{}

func (failingLookup) Lookup(ctx context.Context, ip string) (scans.GeoHint, error) {
	return scans.GeoHint{}, errors.New("upstream unavailable")
}

func TestEnrichSwallowsLookupFailure(t *testing.T) {
	enricher := scans.NewEnricher(testsupport.GetLogger(), failingLookup{}, time.Second)

	meta := &scans.RequestMeta{UserAgent: uaIPhone}
	result := enricher.Enrich(context.Background(), meta, "203.0.113.7")

	assert.Equal(t, "mobile", result.DeviceType)
	assert.Empty(t, result.Region)
	assert.Empty(t, result.City)
}

type stubLookup struct {
	hint scans.GeoHint
}

func (s stubLookup) Lookup(ctx context.Context, ip string) (scans.GeoHint, error) {
	return s.hint, nil
}

func TestEnrichLookupFillsOnlyMissingFields(t *testing.T) {
	enricher := scans.NewEnricher(testsupport.GetLogger(), stubLookup{
		hint: scans.GeoHint{Country: "us", Region: "California", City: "San Jose"},
	}, time.Second)

	meta := &scans.RequestMeta{
		UserAgent: uaMac,
		Geo:       scans.GeoHint{Country: "DE", Region: "Bavaria"},
	}
	result := enricher.Enrich(context.Background(), meta, "203.0.113.7")

	assert.Equal(t, "de", result.Country)
	assert.Equal(t, "Bavaria", result.Region)
	assert.Equal(t, "San Jose", result.City)
}

func TestEnrichSkipsLookupForPrivateAddresses(t *testing.T) {
	enricher := scans.NewEnricher(testsupport.GetLogger(), failingLookup{}, time.Second)

	for _, ip := range []string{"192.168.1.10", "10.0.0.5", "127.0.0.1", scans.UnknownIP} {
		meta := &scans.RequestMeta{UserAgent: uaMac}
		result := enricher.Enrich(context.Background(), meta, ip)

		assert.Empty(t, result.Country, "ip: %s", ip)
		assert.Empty(t, result.Region, "ip: %s", ip)
	}
}
