package rangesync

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sjsage522/hotelpricesync/internal/extractor"
	"sjsage522/hotelpricesync/internal/ledger"
	"sjsage522/hotelpricesync/internal/resolver"
	"sjsage522/hotelpricesync/pkg/errors"
	"sjsage522/hotelpricesync/services/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingURL = "https://www.booking.com/hotel/fr/le-grand.html?lang=en-gb"

type fakeExtractor struct {
	mu      sync.Mutex
	refs    []resolver.ListingReference
	respond func(ref resolver.ListingReference) extractor.Result
}

func (f *fakeExtractor) Extract(ctx context.Context, ref resolver.ListingReference) extractor.Result {
	f.mu.Lock()
	f.refs = append(f.refs, ref)
	f.mu.Unlock()
	return f.respond(ref)
}

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refs)
}

func quote(ref resolver.ListingReference, room string, price float64) extractor.Quote {
	return extractor.Quote{
		CheckIn:   ref.CheckIn,
		CheckOut:  ref.CheckOut,
		RoomType:  room,
		Price:     price,
		Currency:  "EUR",
		Source:    extractor.Source,
		ScrapedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func twoRooms(ref resolver.ListingReference) extractor.Result {
	name := "Hotel Le Grand"
	return extractor.Result{
		Success: true,
		URL:     ref.URL,
		Profile: extractor.Profile{Name: &name},
		Rooms: []extractor.Quote{
			quote(ref, "Deluxe Double Room", 145),
			quote(ref, "Standard Twin Room", 120),
		},
	}
}

type recordingPublisher struct {
	events   []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, event string, payload []byte) error {
	p.events = append(p.events, event)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) TrimStreams(ctx context.Context) error { return nil }
func (p *recordingPublisher) Close() error                          { return nil }

func setup(t *testing.T, respond func(resolver.ListingReference) extractor.Result) (*Synchronizer, *fakeExtractor, *ledger.Memory, int64) {
	t.Helper()
	store := ledger.NewMemory()
	listing, err := store.Create(context.Background(), ledger.Listing{
		Name:       "Le Grand",
		BookingURL: listingURL,
		IsActive:   true,
	})
	require.NoError(t, err)

	ex := &fakeExtractor{respond: respond}
	return NewSynchronizer(ex, store, Options{}), ex, store, listing.ID
}

func TestSyncTwoDayRangeExtractsEachNight(t *testing.T) {
	s, ex, store, id := setup(t, twoRooms)

	run, err := s.Sync(context.Background(), Request{ListingID: id, StartDate: "2025-06-23", EndDate: "2025-06-25"})
	require.NoError(t, err)

	require.Equal(t, 2, ex.calls())
	assert.Equal(t, "2025-06-23", ex.refs[0].CheckIn)
	assert.Equal(t, "2025-06-24", ex.refs[0].CheckOut)
	assert.Equal(t, "https://www.booking.com/hotel/fr/le-grand.html?lang=en-gb&checkin=2025-06-23&checkout=2025-06-24", ex.refs[0].URL)
	assert.Equal(t, "2025-06-24", ex.refs[1].CheckIn)
	assert.Equal(t, "2025-06-25", ex.refs[1].CheckOut)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 2, run.SuccessfulDays)
	assert.Equal(t, 0, run.FailedDays)
	assert.Equal(t, 4, run.Added)
	assert.Equal(t, 0, run.Updated)
	require.Len(t, run.Days, 2)
	assert.Equal(t, 2, run.Days[0].Quotes)

	records, err := store.ListByListing(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestSyncRejectsInvalidRangesWithoutExtraction(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
	}{
		{"end equals start", "2025-06-23", "2025-06-23"},
		{"end before start", "2025-06-24", "2025-06-23"},
		{"span over thirty days", "2025-06-01", "2025-07-02"},
		{"malformed start", "23/06/2025", "2025-06-24"},
		{"malformed end", "2025-06-23", "tomorrow"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, ex, _, _ := setup(t, twoRooms)

			// unknown listing: validation must come before the ledger lookup
			_, err := s.Sync(context.Background(), Request{ListingID: 999, StartDate: tc.start, EndDate: tc.end})
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), err.Error())
			assert.Equal(t, 0, ex.calls())
		})
	}
}

func TestSyncAcceptsThirtyDays(t *testing.T) {
	s, ex, _, id := setup(t, twoRooms)

	run, err := s.Sync(context.Background(), Request{ListingID: id, StartDate: "2025-06-01", EndDate: "2025-07-01"})
	require.NoError(t, err)
	assert.Equal(t, 30, ex.calls())
	assert.Equal(t, 30, run.SuccessfulDays)
}

func TestSyncIsIdempotent(t *testing.T) {
	s, _, store, id := setup(t, twoRooms)
	req := Request{ListingID: id, StartDate: "2025-06-23", EndDate: "2025-06-26"}

	first, err := s.Sync(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 6, first.Added)
	assert.Equal(t, 0, first.Updated)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, first.Added, second.Updated)

	records, err := store.ListByListing(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, records, first.Added)
}

func TestFailedDaysDoNotAbortRun(t *testing.T) {
	s, ex, store, id := setup(t, func(ref resolver.ListingReference) extractor.Result {
		switch ref.CheckIn {
		case "2025-06-24":
			return extractor.Result{Success: false, Error: "[network] booking.com: unexpected status code: 503", URL: ref.URL}
		case "2025-06-25":
			return extractor.Result{Success: true, URL: ref.URL, Rooms: []extractor.Quote{}}
		}
		return twoRooms(ref)
	})

	run, err := s.Sync(context.Background(), Request{ListingID: id, StartDate: "2025-06-23", EndDate: "2025-06-27"})
	require.NoError(t, err)

	assert.Equal(t, 4, ex.calls())
	assert.Equal(t, 2, run.SuccessfulDays)
	assert.Equal(t, 2, run.FailedDays)
	assert.Contains(t, run.Days[1].Error, "503")
	assert.Equal(t, errNoPrices, run.Days[2].Error)
	assert.True(t, run.Days[3].Success)

	records, err := store.ListByListing(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestSyncEveryDayFailedStillReturnsSummary(t *testing.T) {
	s, _, _, id := setup(t, func(ref resolver.ListingReference) extractor.Result {
		return extractor.Result{Success: false, Error: "timeout"}
	})

	run, err := s.Sync(context.Background(), Request{ListingID: id, StartDate: "2025-06-23", EndDate: "2025-06-25"})
	require.NoError(t, err)

	summary := run.Summary()
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.Results.FailedScrapes)
	assert.Equal(t, 0, summary.Results.SuccessfulScrapes)
	assert.Equal(t, 2, summary.DateRange.TotalDays)
}

type failingLedger struct {
	*ledger.Memory
	failRoom string
}

func (f *failingLedger) Upsert(ctx context.Context, r ledger.Record) (ledger.Outcome, error) {
	if r.RoomType == f.failRoom {
		return 0, stderrors.New("connection reset")
	}
	return f.Memory.Upsert(ctx, r)
}

func TestUpsertFailureMarksDayFailed(t *testing.T) {
	mem := ledger.NewMemory()
	listing, err := mem.Create(context.Background(), ledger.Listing{Name: "Le Grand", BookingURL: listingURL})
	require.NoError(t, err)
	store := &failingLedger{Memory: mem, failRoom: "Standard Twin Room"}

	s := NewSynchronizer(&fakeExtractor{respond: twoRooms}, store, Options{})
	run, err := s.Sync(context.Background(), Request{ListingID: listing.ID, StartDate: "2025-06-23", EndDate: "2025-06-25"})
	require.NoError(t, err)

	assert.Equal(t, 2, run.FailedDays)
	assert.Equal(t, 2, run.Added, "the other room of each day is still stored")
	assert.Equal(t, "connection reset", run.Days[0].Error)
}

func TestHeadlineUsedWhenNoRooms(t *testing.T) {
	board := "Breakfast included"
	s, _, store, id := setup(t, func(ref resolver.ListingReference) extractor.Result {
		h := quote(ref, "Double Room", 99)
		h.BoardType = &board
		if ref.CheckIn == "2025-06-24" {
			h.RoomType = ""
		}
		return extractor.Result{Success: true, Headline: &h, Rooms: []extractor.Quote{}}
	})

	run, err := s.Sync(context.Background(), Request{ListingID: id, StartDate: "2025-06-23", EndDate: "2025-06-25"})
	require.NoError(t, err)

	assert.Equal(t, 1, run.SuccessfulDays)
	assert.Equal(t, 1, run.FailedDays, "unlabeled headline is not stored")

	records, err := store.ListByListing(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Double Room", records[0].RoomType)
	require.NotNil(t, records[0].BoardType)
	assert.Equal(t, board, *records[0].BoardType)
}

func TestSyncUnknownListing(t *testing.T) {
	s, ex, _, _ := setup(t, twoRooms)

	_, err := s.Sync(context.Background(), Request{ListingID: 42, StartDate: "2025-06-23", EndDate: "2025-06-24"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Equal(t, 0, ex.calls())
}

func TestSyncIsSerializedPerListing(t *testing.T) {
	locker := lock.NewLocalLocker()
	store := ledger.NewMemory()
	listing, err := store.Create(context.Background(), ledger.Listing{Name: "Le Grand", BookingURL: listingURL})
	require.NoError(t, err)
	ex := &fakeExtractor{respond: twoRooms}
	s := NewSynchronizer(ex, store, Options{Locker: locker})

	release, err := locker.Acquire(context.Background(), lockKey(listing.ID), time.Minute)
	require.NoError(t, err)

	_, err = s.Sync(context.Background(), Request{ListingID: listing.ID, StartDate: "2025-06-23", EndDate: "2025-06-24"})
	assert.ErrorIs(t, err, lock.ErrLocked)
	assert.Equal(t, 0, ex.calls())

	release()
	_, err = s.Sync(context.Background(), Request{ListingID: listing.ID, StartDate: "2025-06-23", EndDate: "2025-06-24"})
	assert.NoError(t, err)
}

func TestSyncRefreshesProfileAndPublishes(t *testing.T) {
	store := ledger.NewMemory()
	listing, err := store.Create(context.Background(), ledger.Listing{Name: "Le Grand", BookingURL: listingURL})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	s := NewSynchronizer(&fakeExtractor{respond: twoRooms}, store, Options{Publisher: pub})

	run, err := s.Sync(context.Background(), Request{ListingID: listing.ID, StartDate: "2025-06-23", EndDate: "2025-06-24"})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hotel Le Grand", got.Name)

	require.Equal(t, []string{EventCompleted}, pub.events)
	var summary Summary
	require.NoError(t, json.Unmarshal(pub.payloads[0], &summary))
	assert.Equal(t, run.ID, summary.RunID)
	assert.Equal(t, 2, summary.Results.TotalPricesAdded)
}

func TestPolitenessDelayBetweenDays(t *testing.T) {
	store := ledger.NewMemory()
	listing, err := store.Create(context.Background(), ledger.Listing{Name: "Le Grand", BookingURL: listingURL})
	require.NoError(t, err)
	s := NewSynchronizer(&fakeExtractor{respond: twoRooms}, store, Options{DayDelay: 50 * time.Millisecond})

	started := time.Now()
	_, err = s.Sync(context.Background(), Request{ListingID: listing.ID, StartDate: "2025-06-23", EndDate: "2025-06-26"})
	require.NoError(t, err)
	elapsed := time.Since(started)

	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond, "two waits between three days")
	assert.Less(t, elapsed, 2*time.Second)
}

func TestSummaryShape(t *testing.T) {
	run := Run{
		ID:             "run-1",
		ListingID:      7,
		StartDate:      "2025-06-23",
		EndDate:        "2025-06-25",
		Days:           []DayOutcome{{Success: true, Added: 2}, {Success: false, Error: errNoPrices}},
		SuccessfulDays: 1,
		FailedDays:     1,
		Added:          2,
	}

	out, err := json.Marshal(run.Summary())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, map[string]interface{}{"start_date": "2025-06-23", "end_date": "2025-06-25", "total_days": float64(2)}, decoded["date_range"])
	assert.Equal(t, map[string]interface{}{
		"successful_scrapes":   float64(1),
		"failed_scrapes":       float64(1),
		"total_prices_added":   float64(2),
		"total_prices_updated": float64(0),
	}, decoded["results"])
	assert.Equal(t, float64(1), decoded["successful_days"])
	assert.Equal(t, float64(2), decoded["added"])
	assert.Contains(t, decoded["message"], "1 of 2 days")
}

const twoRatePage = `<html><head><title>Le Grand</title></head><body>
<table class="hprt-table"><tbody>
<tr>
  <td><span class="hprt-roomtype-icon-link">Double Room</span></td>
  <td><ul class="hprt-conditions"><li>Room only</li></ul></td>
  <td><div data-hotel-rounded-price="120">€ 120</div></td>
</tr>
<tr>
  <td><ul class="hprt-conditions"><li>Breakfast included</li></ul></td>
  <td><div data-hotel-rounded-price="140">€ 140</div></td>
</tr>
</tbody></table>
</body></html>`

func TestRateRowsOfOneRoomStoreOneRecord(t *testing.T) {
	s, _, store, id := setup(t, func(ref resolver.ListingReference) extractor.Result {
		result, err := extractor.Parse(strings.NewReader(twoRatePage), ref, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		return result
	})
	req := Request{ListingID: id, StartDate: "2025-06-23", EndDate: "2025-06-24"}

	first, err := s.Sync(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Added)
	assert.Equal(t, 0, first.Updated)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, first.Added, second.Updated)

	records, err := store.ListByListing(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Double Room", records[0].RoomType)
	assert.Equal(t, 120.0, records[0].Price)
	require.NotNil(t, records[0].BoardType)
	assert.Equal(t, "Room only", *records[0].BoardType)
}
