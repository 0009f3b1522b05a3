package scans

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	ua "github.com/mssola/useragent"

	"scantrace/internal/pkg/geoip"
)

// GeoLookup is the capability interface for the external geo fallback.
// Implementations return whatever fields they could resolve; a failed lookup
// returns an error that the caller swallows. It must never block beyond its
// configured timeout.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (GeoHint, error)
}

// NoopGeoLookup resolves nothing. Used in tests and when no lookup endpoint
// is configured.
type NoopGeoLookup struct{}

// Lookup implements GeoLookup.
func (NoopGeoLookup) Lookup(ctx context.Context, ip string) (GeoHint, error) {
	return GeoHint{}, nil
}

// HTTPGeoLookup queries an ip-api style JSON endpoint.
type HTTPGeoLookup struct {
	BaseURL string
	Client  *http.Client
}

type geoLookupResponse struct {
	Status      string `json:"status"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
}

// Lookup implements GeoLookup against BaseURL/{ip}.
func (l *HTTPGeoLookup) Lookup(ctx context.Context, ip string) (GeoHint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(l.BaseURL, "/")+"/"+ip, nil)
	if err != nil {
		return GeoHint{}, err
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return GeoHint{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GeoHint{}, fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var body geoLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return GeoHint{}, fmt.Errorf("failed to decode geo lookup response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return GeoHint{}, fmt.Errorf("geo lookup failed for %s", ip)
	}

	return GeoHint{
		Country: strings.ToLower(body.CountryCode),
		Region:  body.RegionName,
		City:    body.City,
	}, nil
}

// Enricher derives device/OS/browser from the user-agent string and coarse
// geo from request signals. Every field is independently optional; no
// enrichment failure ever fails a scan.
type Enricher struct {
	Logger        *slog.Logger
	Lookup        GeoLookup
	LookupTimeout time.Duration
}

// NewEnricher builds an enricher with the given fallback lookup. A nil
// lookup disables the external fallback entirely.
func NewEnricher(logger *slog.Logger, lookup GeoLookup, lookupTimeout time.Duration) *Enricher {
	if lookup == nil {
		lookup = NoopGeoLookup{}
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 2 * time.Second
	}
	return &Enricher{Logger: logger, Lookup: lookup, LookupTimeout: lookupTimeout}
}

// Enrich resolves the full enrichment tuple for one scan request.
// ip is the already-extracted client address (possibly UnknownIP).
func (e *Enricher) Enrich(ctx context.Context, meta *RequestMeta, ip string) Enrichment {
	result := Enrichment{}

	device, osName, browser := parseUserAgent(meta.UserAgent)
	result.DeviceType = device
	result.OS = osName
	result.Browser = browser

	// Platform-supplied geo headers win over any lookup.
	result.Country = strings.ToLower(meta.Geo.Country)
	result.Region = meta.Geo.Region
	result.City = meta.Geo.City

	routable := ip != UnknownIP && IsRoutableIP(ip)

	if result.Country == "" && routable {
		result.Country = countryFromLocalDB(ip)
	}

	if (result.Region == "" || result.City == "") && routable {
		lookupCtx, cancel := context.WithTimeout(ctx, e.LookupTimeout)
		defer cancel()

		hint, err := e.Lookup.Lookup(lookupCtx, ip)
		if err != nil {
			// Advisory only: a failed lookup leaves the fields unset.
			if e.Logger != nil {
				e.Logger.Debug("External geo lookup failed", slog.Any("error", err))
			}
			return result
		}
		if result.Country == "" {
			result.Country = hint.Country
		}
		if result.Region == "" {
			result.Region = hint.Region
		}
		if result.City == "" {
			result.City = hint.City
		}
	}

	return result
}

// countryFromLocalDB resolves an address to a lowercase ISO country code via
// the optional GeoLite2 database, or "" when unavailable.
func countryFromLocalDB(ip string) string {
	geoDB := geoip.GetGeoDB()
	if geoDB == nil {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	record, err := geoDB.Country(parsed)
	if err != nil {
		return ""
	}
	if record.Country.IsoCode == "" || record.Country.IsoCode == "--" {
		return ""
	}
	return strings.ToLower(record.Country.IsoCode)
}

// parseUserAgent classifies one user-agent string. Parsed signals are
// preferred; substring heuristics fill the gaps, defaulting to desktop.
func parseUserAgent(raw string) (device, osName, browser string) {
	if raw == "" {
		return "desktop", "", ""
	}

	parsed := ua.New(raw)
	lower := strings.ToLower(raw)

	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		device = "tablet"
	case parsed.Mobile() || strings.Contains(lower, "mobile"):
		device = "mobile"
	default:
		device = "desktop"
	}

	osName = parsed.OS()
	browser, _ = parsed.Browser()
	return device, osName, browser
}
