package util

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIP_HTTPFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/json/8.8.8.8")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","country":"United States","regionName":"California","city":"Mountain View","lat":37.4,"lon":-122.07,"isp":"Google LLC"}`))
	}))
	defer srv.Close()

	assert.NoError(t, InitGeoIP(""))
	SetGeoAPIBaseURL(srv.URL)
	defer SetGeoAPIBaseURL("")

	loc := LookupIP("8.8.8.8")
	assert.Equal(t, "United States", loc.Country)
	assert.Equal(t, "California", loc.Region)
	assert.Equal(t, "Mountain View", loc.City)
	assert.InDelta(t, 37.4, loc.Latitude, 0.001)
	assert.InDelta(t, -122.07, loc.Longitude, 0.001)
	assert.Equal(t, "Google LLC", loc.ISP)
}

func TestLookupIP_CachesResults(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"status":"success","country":"Germany"}`))
	}))
	defer srv.Close()

	assert.NoError(t, InitGeoIP(""))
	SetGeoAPIBaseURL(srv.URL)
	defer SetGeoAPIBaseURL("")

	first := LookupIP("81.169.145.1")
	second := LookupIP("81.169.145.1")
	assert.Equal(t, "Germany", first.Country)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestLookupIP_FailuresDegradeToZero(t *testing.T) {
	assert.NoError(t, InitGeoIP(""))

	// No backends configured at all
	SetGeoAPIBaseURL("")
	assert.True(t, LookupIP("203.0.113.50").IsZero())

	// Service answers with a failure status
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail"}`))
	}))
	defer srv.Close()
	SetGeoAPIBaseURL(srv.URL)
	defer SetGeoAPIBaseURL("")
	assert.True(t, LookupIP("203.0.113.51").IsZero())
}

func TestLookupIP_SkipsPrivateAndInvalid(t *testing.T) {
	assert.NoError(t, InitGeoIP(""))

	assert.True(t, LookupIP("").IsZero())
	assert.True(t, LookupIP("not-an-ip").IsZero())
	assert.True(t, LookupIP("127.0.0.1").IsZero())
	assert.True(t, LookupIP("10.1.2.3").IsZero())
	assert.True(t, LookupIP("192.168.0.10").IsZero())
}

func TestInitGeoIP_BadPath(t *testing.T) {
	assert.Error(t, InitGeoIP("/nonexistent/geoip.mmdb"))
}

func TestGetGeoIPCacheMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","country":"Germany"}`))
	}))
	defer srv.Close()

	assert.NoError(t, InitGeoIP(""))
	SetGeoAPIBaseURL(srv.URL)
	defer SetGeoAPIBaseURL("")

	hits0, misses0, _ := GetGeoIPCacheMetrics()

	LookupIP("81.169.145.2")
	LookupIP("81.169.145.2")

	hits, misses, size := GetGeoIPCacheMetrics()
	assert.Equal(t, hits0+1, hits)
	assert.Equal(t, misses0+1, misses)
	assert.Equal(t, 1, size)
}
