package util

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oschwald/geoip2-golang"
	cache "github.com/patrickmn/go-cache"
)

// Location is the transient geolocation result attached to a trust record.
// The zero value means "lookup unavailable"; callers must treat every field
// as best-effort.
type Location struct {
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ISP       string  `json:"isp"`
}

// IsZero reports whether the lookup produced nothing usable.
func (l Location) IsZero() bool {
	return l == Location{}
}

var (
	geoipDB        *geoip2.Reader
	geoipCache     *cache.Cache
	geoAPIBaseURL  string
	geoHTTPClient  = &http.Client{Timeout: 5 * time.Second}
	geoipCacheHits int64
	geoipCacheMiss int64
)

// InitGeoIP initializes the local GeoIP2 database reader and an in-memory cache.
// Provide the path to a GeoIP2/GeoLite2 .mmdb file via `dbPath`.
// If dbPath is empty, initialization of the local reader is a no-op and
// lookups fall through to the HTTP service configured with SetGeoAPIBaseURL.
func InitGeoIP(dbPath string) error {
	// Cache entries for 24h, purge every hour
	geoipCache = cache.New(24*time.Hour, 1*time.Hour)

	if dbPath == "" {
		return nil
	}
	r, err := geoip2.Open(dbPath)
	if err != nil {
		return err
	}
	geoipDB = r
	return nil
}

// CloseGeoIP closes the GeoIP DB if opened.
func CloseGeoIP() {
	if geoipDB != nil {
		_ = geoipDB.Close()
		geoipDB = nil
	}
}

// SetGeoAPIBaseURL configures the HTTP geolocation service used when no
// local database is loaded, e.g. "http://ip-api.com". Empty disables the
// HTTP path.
func SetGeoAPIBaseURL(baseURL string) {
	geoAPIBaseURL = baseURL
}

// LookupIP returns the best-effort geolocation for ip. Resolution order is
// cache, local mmdb, HTTP service. Every failure mode degrades to the zero
// Location; this function never blocks a login beyond the HTTP client
// timeout and never returns an error.
func LookupIP(ip string) Location {
	if ip == "" {
		return Location{}
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || !IsPublicIP(parsed) {
		return Location{}
	}

	if geoipCache != nil {
		if v, ok := geoipCache.Get(ip); ok {
			atomic.AddInt64(&geoipCacheHits, 1)
			if loc, ok := v.(Location); ok {
				return loc
			}
		}
	}
	atomic.AddInt64(&geoipCacheMiss, 1)

	loc := lookupLocal(parsed)
	if loc.IsZero() {
		loc = lookupHTTP(ip)
	}

	if geoipCache != nil && !loc.IsZero() {
		geoipCache.Set(ip, loc, cache.DefaultExpiration)
	}
	return loc
}

func lookupLocal(ip net.IP) Location {
	if geoipDB == nil {
		return Location{}
	}
	rec, err := geoipDB.City(ip)
	if err != nil {
		return Location{}
	}

	var loc Location
	if rec.City.Names != nil {
		loc.City = rec.City.Names["en"]
	}
	if rec.Country.Names != nil {
		loc.Country = rec.Country.Names["en"]
	}
	if loc.Country == "" {
		loc.Country = rec.Country.IsoCode
	}
	if len(rec.Subdivisions) > 0 && rec.Subdivisions[0].Names != nil {
		loc.Region = rec.Subdivisions[0].Names["en"]
	}
	loc.Latitude = rec.Location.Latitude
	loc.Longitude = rec.Location.Longitude
	return loc
}

// geoAPIResponse matches the ip-api.com JSON shape.
type geoAPIResponse struct {
	Status     string  `json:"status"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	ISP        string  `json:"isp"`
}

func lookupHTTP(ip string) Location {
	if geoAPIBaseURL == "" {
		return Location{}
	}
	url := fmt.Sprintf("%s/json/%s?fields=status,country,regionName,city,lat,lon,isp", geoAPIBaseURL, ip)
	resp, err := geoHTTPClient.Get(url)
	if err != nil {
		if securityLogger != nil {
			securityLogger.Printf("GeoIP HTTP lookup failed for %s: %v", ip, err)
		}
		return Location{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Location{}
	}

	var out geoAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Location{}
	}
	if out.Status != "" && out.Status != "success" {
		return Location{}
	}
	return Location{
		Country:   out.Country,
		Region:    out.RegionName,
		City:      out.City,
		Latitude:  out.Lat,
		Longitude: out.Lon,
		ISP:       out.ISP,
	}
}

// GetIPLocation returns city and country name for the provided IP. Kept as
// the convenience form used by the security logger.
func GetIPLocation(ip string) (string, string) {
	loc := LookupIP(ip)
	return loc.City, loc.Country
}

// GetGeoIPCacheMetrics returns the cache hits and misses and current cache size.
func GetGeoIPCacheMetrics() (hits int64, misses int64, size int) {
	hits = atomic.LoadInt64(&geoipCacheHits)
	misses = atomic.LoadInt64(&geoipCacheMiss)
	if geoipCache != nil {
		return hits, misses, geoipCache.ItemCount()
	}
	return hits, misses, 0
}
