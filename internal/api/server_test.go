package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sjsage522/hotelpricesync/internal/calendar"
	"sjsage522/hotelpricesync/internal/extractor"
	"sjsage522/hotelpricesync/internal/ledger"
	"sjsage522/hotelpricesync/internal/rangesync"
	"sjsage522/hotelpricesync/internal/resolver"
	"sjsage522/hotelpricesync/pkg/errors"
	"sjsage522/hotelpricesync/services/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	refs []resolver.ListingReference
}

func (s *stubExtractor) Extract(ctx context.Context, ref resolver.ListingReference) extractor.Result {
	s.refs = append(s.refs, ref)
	name := "Casa do Rio"
	return extractor.Result{
		Success:  true,
		URL:      ref.URL,
		CheckIn:  ref.CheckIn,
		CheckOut: ref.CheckOut,
		Profile:  extractor.Profile{Name: &name},
		Rooms: []extractor.Quote{{
			CheckIn:  ref.CheckIn,
			CheckOut: ref.CheckOut,
			RoomType: "Double Room",
			Price:    120.5,
			Currency: "EUR",
			Source:   extractor.Source,
		}},
	}
}

type stubCalendar struct {
	urls []string
}

func (s *stubCalendar) Run(ctx context.Context, url string) calendar.Result {
	s.urls = append(s.urls, url)
	price := 95.0
	return calendar.Result{
		Success:  true,
		HotelURL: url,
		PricingData: &calendar.PricingData{
			HotelID:            json.RawMessage(`12345`),
			Days:               []calendar.Day{{CheckIn: "2025-06-23", Available: true, Price: &price, PriceFormatted: "€95", MinLengthOfStay: 1}},
			TotalAvailableDays: 1,
		},
		TotalDays: 1,
	}
}

type erroringSyncer struct {
	err error
}

func (e erroringSyncer) Sync(ctx context.Context, req rangesync.Request) (rangesync.Run, error) {
	return rangesync.Run{}, e.err
}

func (e erroringSyncer) SyncPoint(ctx context.Context, id int64, in, out string) (rangesync.PointResult, error) {
	return rangesync.PointResult{}, e.err
}

type fixture struct {
	server  *Server
	store   *ledger.Memory
	ex      *stubExtractor
	cal     *stubCalendar
	listing *ledger.Listing
	handler http.Handler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := ledger.NewMemory()
	listing, err := store.Create(context.Background(), ledger.Listing{
		Name:       "Casa",
		BookingURL: "https://www.booking.com/hotel/pt/casa-do-rio.html",
		IsActive:   true,
	})
	require.NoError(t, err)

	ex := &stubExtractor{}
	cal := &stubCalendar{}
	syncer := rangesync.NewSynchronizer(ex, store, rangesync.Options{})
	s := NewServer(syncer, store, ex, cal, opts)
	s.now = func() time.Time { return time.Date(2025, 6, 20, 9, 30, 0, 0, time.UTC) }
	return &fixture{server: s, store: store, ex: ex, cal: cal, listing: listing, handler: s.Handler()}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndStatus(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do("GET", "/scraping/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "operational", body["status"])
	assert.Equal(t, "hotel-scraper", body["service"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "2025-06-20T09:30:00Z", body["timestamp"])
}

func TestScrapeDateRange(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do("POST", "/scraping/scrape-date-range/1", `{"start_date":"2025-06-23","end_date":"2025-06-25"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["successful_days"])
	assert.Equal(t, float64(2), body["added"])
	assert.Equal(t, map[string]interface{}{
		"start_date": "2025-06-23",
		"end_date":   "2025-06-25",
		"total_days": float64(2),
	}, body["date_range"])
	assert.Len(t, f.ex.refs, 2)

	records, err := f.store.ListByListing(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestScrapeDateRangeRejections(t *testing.T) {
	f := newFixture(t, Options{})

	cases := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"end before start", "/scraping/scrape-date-range/1", `{"start_date":"2025-06-25","end_date":"2025-06-23"}`, http.StatusBadRequest},
		{"too long", "/scraping/scrape-date-range/1", `{"start_date":"2025-06-01","end_date":"2025-07-15"}`, http.StatusBadRequest},
		{"bad json", "/scraping/scrape-date-range/1", `{"start_date":`, http.StatusBadRequest},
		{"bad id", "/scraping/scrape-date-range/abc", `{"start_date":"2025-06-23","end_date":"2025-06-24"}`, http.StatusBadRequest},
		{"unknown hotel", "/scraping/scrape-date-range/99", `{"start_date":"2025-06-23","end_date":"2025-06-24"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do("POST", tc.target, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Contains(t, decode(t, rec), "error")
		})
	}
	assert.Empty(t, f.ex.refs)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{errors.NewValidation("sync", "end_date must be after start_date"), http.StatusBadRequest, "end_date must be after start_date"},
		{ledger.ErrNotFound, http.StatusNotFound, "Hotel not found"},
		{lock.ErrLocked, http.StatusConflict, "A synchronization for this hotel is already running"},
		{errors.NewStorage("ledger", "insert failed", nil), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		s := NewServer(erroringSyncer{err: tc.err}, ledger.NewMemory(), &stubExtractor{}, &stubCalendar{}, Options{})
		h := s.Handler()

		for _, target := range []string{"/scraping/scrape-date-range/1", "/scraping/update-prices/1"} {
			req := httptest.NewRequest("POST", target, strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code, target)
			assert.Equal(t, tc.msg, decode(t, rec)["error"])
		}
	}
}

func TestUpdatePrices(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do("POST", "/scraping/update-prices/1?check_in_date=2025-06-23&check_out_date=2025-06-24", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Successfully updated prices for Casa", body["message"])
	assert.Equal(t, float64(1), body["rooms_added"])
	assert.Equal(t, "https://www.booking.com/hotel/pt/casa-do-rio.html?checkin=2025-06-23&checkout=2025-06-24", f.ex.refs[0].URL)

	rec = f.do("POST", "/scraping/update-prices/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Hotel not found", decode(t, rec)["error"])
}

func TestScrapeHotelDoesNotPersist(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do("POST", "/scraping/hotel", `{"booking_url":"https://www.booking.com/hotel/pt/other.html?checkin=2025-07-01&checkout=2025-07-03"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "2025-07-01", body["check_in_date"])
	require.Len(t, f.ex.refs, 1)
	assert.Equal(t, "2025-07-03", f.ex.refs[0].CheckOut)

	records, err := f.store.ListByListing(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, records)

	rec = f.do("POST", "/scraping/hotel", `{"booking_url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeCalendar(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do("POST", "/scraping/calendar", `{"booking_url":"https://www.booking.com/hotel/pt/casa-do-rio.html"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["total_days"])
	assert.Equal(t, []string{"https://www.booking.com/hotel/pt/casa-do-rio.html"}, f.cal.urls)

	rec = f.do("POST", "/scraping/calendar", `{"booking_url":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.cal.urls, 1)
}

func TestHotels(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do("POST", "/hotels", `{"name":"Le Grand","booking_url":"https://www.booking.com/hotel/fr/le-grand.html"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, float64(2), created["id"])
	assert.Equal(t, true, created["is_active"])

	rec = f.do("POST", "/hotels", `{"name":"","booking_url":"https://www.booking.com/hotel/fr/x.html"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("GET", "/hotels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listings []ledger.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	assert.Len(t, listings, 2)

	city := "Lisboa"
	require.NoError(t, f.store.ApplyProfile(context.Background(), 1, ledger.ProfileUpdate{City: &city}))
	rec = f.do("GET", "/hotels?city=lisb", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 1)
	assert.Equal(t, int64(1), listings[0].ID)

	rec = f.do("GET", "/hotels/2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Le Grand", decode(t, rec)["name"])

	rec = f.do("GET", "/hotels/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateHotelRejectsDuplicateURL(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do("POST", "/hotels", `{"name":"Casa again","booking_url":"https://www.booking.com/hotel/pt/casa-do-rio.html"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Hotel with this URL already exists", decode(t, rec)["error"])

	listings, err := f.store.Active(context.Background())
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestFreeformURLDatesAreAccepted(t *testing.T) {
	f := newFixture(t, Options{})
	raw := "https://www.booking.com/hotel/fr/le-grand.html?checkin=June&checkout=July"

	rec := f.do("POST", "/hotels", `{"name":"Le Grand","booking_url":"`+raw+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, raw, decode(t, rec)["booking_url"])

	rec = f.do("POST", "/scraping/calendar", `{"booking_url":"`+raw+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{raw}, f.cal.urls)

	rec = f.do("POST", "/scraping/hotel", `{"booking_url":"`+raw+`","check_in_date":"2025-06-23","check_out_date":"2025-06-24"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.ex.refs, 1)
	assert.Equal(t, "2025-06-23", f.ex.refs[0].CheckIn)

	rec = f.do("POST", "/hotels", `{"name":"Relative","booking_url":"/hotel/fr/le-grand.html"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHotelPrices(t *testing.T) {
	f := newFixture(t, Options{})
	for _, in := range []string{"2025-06-23", "2025-06-24", "2025-06-25"} {
		_, err := f.store.Upsert(context.Background(), ledger.Record{
			ListingID: 1, CheckIn: in, CheckOut: in, Price: 100, Currency: "EUR", RoomType: "Double Room",
		})
		require.NoError(t, err)
	}

	rec := f.do("GET", "/hotels/1/prices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []ledger.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 3)
	assert.Equal(t, "2025-06-25", records[0].CheckIn)

	rec = f.do("GET", "/hotels/1/prices?start_date=2025-06-24&end_date=2025-06-24", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "2025-06-24", records[0].CheckIn)

	rec = f.do("GET", "/hotels/1/prices?start_date=June", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("GET", "/hotels/5/prices", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest("OPTIONS", "/scraping/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/scraping/status", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 1})

	first := f.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, first.Code)

	second := f.do("GET", "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "rate limit exceeded")
}
