package calendar

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"sjsage522/hotelpricesync/services/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It stands in for the worker binary
// when re-executed by helperRunner.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	url := os.Args[len(os.Args)-1]

	switch os.Getenv("HELPER_MODE") {
	case "ok":
		fmt.Fprintf(os.Stdout, `{"success":true,"hotel_url":%q,"pricing_data":{"hotel_id":42,"days":[{"checkin":"2025-06-23","available":true,"price":763,"price_formatted":"€763","min_length_of_stay":1}],"total_available_days":1},"total_days":1,"scraped_at":"2025-06-01T10:00:00Z","raw_responses_count":3}`, url)
		os.Exit(0)
	case "crash":
		fmt.Fprintln(os.Stderr, "  chrome binary not found  ")
		os.Exit(2)
	case "reported":
		fmt.Fprintf(os.Stdout, `{"success":false,"error":"navigation failed","hotel_url":%q}`, url)
		fmt.Fprintln(os.Stderr, `{"level":"error","message":"Calendar capture failed"}`)
		os.Exit(1)
	case "garbage":
		fmt.Fprint(os.Stdout, "Traceback: not json")
		os.Exit(0)
	case "hang":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	}
	os.Exit(3)
}

func helperRunner(mode string, timeout time.Duration) *Runner {
	r := NewRunner(os.Args[0], timeout)
	r.args = []string{"-test.run=TestHelperProcess", "--"}
	r.env = []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode}
	return r
}

func TestRunnerParsesWorkerResult(t *testing.T) {
	result := helperRunner("ok", 10*time.Second).Run(context.Background(), hotelURL)

	require.True(t, result.Success, result.Error)
	assert.Equal(t, hotelURL, result.HotelURL)
	assert.Equal(t, 1, result.TotalDays)
	assert.Equal(t, 3, result.RawResponsesCount)
	require.NotNil(t, result.PricingData)
	require.Len(t, result.PricingData.Days, 1)
	assert.Equal(t, 763.0, *result.PricingData.Days[0].Price)
}

func TestRunnerReportsStderrOnCrash(t *testing.T) {
	result := helperRunner("crash", 10*time.Second).Run(context.Background(), hotelURL)

	assert.False(t, result.Success)
	assert.Equal(t, "chrome binary not found", result.Error)
	assert.Equal(t, hotelURL, result.HotelURL)
}

func TestRunnerPrefersReportedError(t *testing.T) {
	result := helperRunner("reported", 10*time.Second).Run(context.Background(), hotelURL)

	assert.False(t, result.Success)
	assert.Equal(t, "navigation failed", result.Error)
}

func TestRunnerRejectsGarbageOutput(t *testing.T) {
	result := helperRunner("garbage", 10*time.Second).Run(context.Background(), hotelURL)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid worker output")
}

func TestRunnerTimeout(t *testing.T) {
	result := helperRunner("hang", 300*time.Millisecond).Run(context.Background(), hotelURL)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
}

func TestRunnerMissingBinary(t *testing.T) {
	result := NewRunner("/nonexistent/calendar-worker", time.Second).Run(context.Background(), hotelURL)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestWorkerFailureDoesNotBlockNextListing(t *testing.T) {
	failedRun := helperRunner("crash", 10*time.Second).Run(context.Background(), hotelURL)
	require.False(t, failedRun.Success)

	next := "https://www.booking.com/hotel/fr/le-grand.html"
	result := helperRunner("ok", 10*time.Second).Run(context.Background(), next)
	assert.True(t, result.Success)
	assert.Equal(t, next, result.HotelURL)
}

func TestRunnerCachesSuccessfulResults(t *testing.T) {
	store := cache.NewMemoryCache()

	r := helperRunner("ok", 10*time.Second).WithCache(store, time.Hour)
	first := r.Run(context.Background(), hotelURL)
	require.True(t, first.Success)

	r.env = []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=crash"}
	second := r.Run(context.Background(), hotelURL)
	assert.True(t, second.Success, "served from cache without spawning")
	assert.Equal(t, first.TotalDays, second.TotalDays)

	other := r.Run(context.Background(), "https://www.booking.com/hotel/fr/other.html")
	assert.False(t, other.Success)
	_, err := store.Get(cache.Key(cacheNamespace, "https://www.booking.com/hotel/fr/other.html"))
	assert.ErrorIs(t, err, cache.ErrMiss, "failures are not cached")
}
