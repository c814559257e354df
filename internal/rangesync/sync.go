// Package rangesync walks a date window one night at a time, extracts the
// listing's prices for each night and upserts them into the ledger.
package rangesync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"sjsage522/hotelpricesync/config"
	"sjsage522/hotelpricesync/internal/extractor"
	"sjsage522/hotelpricesync/internal/ledger"
	"sjsage522/hotelpricesync/internal/pricing"
	"sjsage522/hotelpricesync/internal/resolver"
	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/pkg/errors"
	"sjsage522/hotelpricesync/services/lock"
	"sjsage522/hotelpricesync/services/publisher"

	"github.com/google/uuid"
)

// EventCompleted is published after every range synchronization
const EventCompleted = "sync.completed"

const errNoPrices = "no valid prices found"

// Ledger is the part of the ledger the synchronizer writes to
type Ledger interface {
	ledger.Prices
	ledger.Listings
}

// Options tunes a Synchronizer. Zero values fall back to defaults.
type Options struct {
	// DayDelay is the politeness delay between requests to the same host
	DayDelay time.Duration
	// MaxDays caps the span of a range; it cannot exceed config.MaxSyncDays
	MaxDays int
	// LockTTL bounds how long a listing stays locked by one run
	LockTTL time.Duration

	Locker    lock.Locker
	Publisher publisher.Publisher
	// Limiter overrides the per-host limiter built from DayDelay
	Limiter *HostLimiter
}

// Synchronizer is the only writer of price records
type Synchronizer struct {
	extractor extractor.Extractor
	ledger    Ledger
	locker    lock.Locker
	publisher publisher.Publisher
	limiter   *HostLimiter
	maxDays   int
	lockTTL   time.Duration
	now       func() time.Time
}

// NewSynchronizer creates a synchronizer
func NewSynchronizer(ex extractor.Extractor, l Ledger, opts Options) *Synchronizer {
	s := &Synchronizer{
		extractor: ex,
		ledger:    l,
		locker:    opts.Locker,
		publisher: opts.Publisher,
		limiter:   opts.Limiter,
		maxDays:   opts.MaxDays,
		lockTTL:   opts.LockTTL,
		now:       time.Now,
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker()
	}
	if s.publisher == nil {
		s.publisher = publisher.NopPublisher{}
	}
	if s.limiter == nil {
		s.limiter = NewHostLimiter(opts.DayDelay)
	}
	if s.maxDays <= 0 || s.maxDays > config.MaxSyncDays {
		s.maxDays = config.MaxSyncDays
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 30 * time.Minute
	}
	return s
}

func parseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(resolver.DateLayout, value)
	if err != nil {
		return time.Time{}, errors.NewValidation("sync", fmt.Sprintf("invalid %s %q, expected YYYY-MM-DD", field, value))
	}
	return d, nil
}

// validate checks a window before any extraction or ledger access
func (s *Synchronizer) validate(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := parseDate("start_date", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("end_date", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.NewValidation("sync", "end_date must be after start_date")
	}
	if end.Sub(start) > time.Duration(s.maxDays)*24*time.Hour {
		return time.Time{}, time.Time{}, errors.NewValidation("sync", fmt.Sprintf("date range cannot exceed %d days", s.maxDays))
	}
	return start, end, nil
}

func lockKey(listingID int64) string {
	return "listing:" + strconv.FormatInt(listingID, 10)
}

// Sync synchronizes every night of [StartDate, EndDate). It returns an
// error only for an invalid window, an unknown listing (ledger.ErrNotFound)
// or a listing already being synchronized (lock.ErrLocked). Per-day
// failures are counted in the Run.
func (s *Synchronizer) Sync(ctx context.Context, req Request) (Run, error) {
	start, end, err := s.validate(req.StartDate, req.EndDate)
	if err != nil {
		return Run{}, err
	}

	listing, err := s.ledger.Get(ctx, req.ListingID)
	if err != nil {
		return Run{}, err
	}

	release, err := s.locker.Acquire(ctx, lockKey(listing.ID), s.lockTTL)
	if err != nil {
		return Run{}, err
	}
	defer release()

	run := Run{
		ID:        uuid.NewString(),
		ListingID: listing.ID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Days:      []DayOutcome{},
		StartedAt: s.now().UTC(),
	}
	log := logger.ForSync(listing.ID).WithField("run_id", run.ID)
	log.Info().Str("start_date", req.StartDate).Str("end_date", req.EndDate).Msg("Range synchronization started")

	profileRefreshed := false
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("Range synchronization interrupted")
			break
		}
		checkIn := d.Format(resolver.DateLayout)
		checkOut := d.AddDate(0, 0, 1).Format(resolver.DateLayout)

		day, result := s.syncDay(ctx, listing, checkIn, checkOut, log)
		if !profileRefreshed && result.Success {
			s.refreshProfile(ctx, listing.ID, result.Profile, log)
			profileRefreshed = true
		}
		run.record(day)
	}
	run.FinishedAt = s.now().UTC()

	log.Info().
		Int("successful_days", run.SuccessfulDays).
		Int("failed_days", run.FailedDays).
		Int("added", run.Added).
		Int("updated", run.Updated).
		Msg("Range synchronization finished")

	s.publish(ctx, run.Summary(), log)
	return run, nil
}

// syncDay extracts and stores one single-night window
func (s *Synchronizer) syncDay(ctx context.Context, listing *ledger.Listing, checkIn, checkOut string, log *logger.Logger) (DayOutcome, extractor.Result) {
	day := DayOutcome{CheckIn: checkIn, CheckOut: checkOut}
	log = log.WithField("check_in", checkIn)

	ref, err := resolver.Resolve(listing.BookingURL, checkIn, checkOut)
	if err != nil {
		day.Error = err.Error()
		log.Warn().Err(err).Msg("Listing URL cannot be resolved")
		return day, extractor.Result{}
	}

	if err := s.limiter.Wait(ctx, ref.URL); err != nil {
		day.Error = err.Error()
		return day, extractor.Result{}
	}

	result := s.extractor.Extract(ctx, ref)
	if !result.Success {
		day.Error = result.Error
		log.Warn().Str("error", result.Error).Msg("Extraction failed")
		return day, result
	}

	quotes := quotesOf(result)
	day.Quotes = len(quotes)
	if len(quotes) == 0 {
		day.Error = errNoPrices
		log.Warn().Msg("No valid prices found")
		return day, result
	}

	s.store(ctx, listing.ID, checkIn, checkOut, quotes, &day, log)
	day.Success = day.Error == ""
	return day, result
}

// store upserts quotes; a failed write marks the day failed but the other
// quotes are still written
func (s *Synchronizer) store(ctx context.Context, listingID int64, checkIn, checkOut string, quotes []extractor.Quote, day *DayOutcome, log *logger.Logger) {
	for _, q := range quotes {
		outcome, err := s.ledger.Upsert(ctx, toRecord(listingID, checkIn, checkOut, q))
		if err != nil {
			day.Error = err.Error()
			log.Error().Err(err).Str("room_type", q.RoomType).Msg("Upsert failed")
			continue
		}
		switch outcome {
		case ledger.Added:
			day.Added++
		case ledger.Updated:
			day.Updated++
		}
	}
}

// quotesOf returns the room quotes, or the headline quote when the page
// yielded no rooms but a labeled, plausible headline
func quotesOf(result extractor.Result) []extractor.Quote {
	if len(result.Rooms) > 0 {
		return result.Rooms
	}
	h := result.Headline
	if h != nil && pricing.ValidRoomType(h.RoomType) && pricing.Sane(h.Price) {
		return []extractor.Quote{*h}
	}
	return nil
}

func toRecord(listingID int64, checkIn, checkOut string, q extractor.Quote) ledger.Record {
	return ledger.Record{
		ListingID: listingID,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Price:     q.Price,
		Currency:  q.Currency,
		RoomType:  q.RoomType,
		BoardType: q.BoardType,
		Source:    q.Source,
		ScrapedAt: q.ScrapedAt,
	}
}

func profileUpdate(p extractor.Profile) ledger.ProfileUpdate {
	return ledger.ProfileUpdate{
		Name:        p.Name,
		Address:     p.Address,
		City:        p.City,
		Country:     p.Country,
		StarRating:  p.StarRating,
		UserRating:  p.UserRating,
		RatingCount: p.RatingCount,
		Amenities:   p.Amenities,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
	}
}

func (s *Synchronizer) refreshProfile(ctx context.Context, listingID int64, p extractor.Profile, log *logger.Logger) {
	update := profileUpdate(p)
	if update.Empty() {
		return
	}
	if err := s.ledger.ApplyProfile(ctx, listingID, update); err != nil {
		log.Warn().Err(err).Msg("Listing profile refresh failed")
	}
}

func (s *Synchronizer) publish(ctx context.Context, summary Summary, log *logger.Logger) {
	payload, err := json.Marshal(summary)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode sync event")
		return
	}
	if err := s.publisher.Publish(ctx, EventCompleted, payload); err != nil {
		log.Warn().Err(err).Msg("Failed to publish sync event")
	}
}
