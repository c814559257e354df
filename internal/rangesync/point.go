package rangesync

import (
	"context"
	"fmt"

	"sjsage522/hotelpricesync/internal/extractor"
	"sjsage522/hotelpricesync/internal/resolver"
	"sjsage522/hotelpricesync/logger"
)

// PointResult is the outcome of a single-window price update
type PointResult struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Error      string           `json:"error,omitempty"`
	HotelID    int64            `json:"hotel_id"`
	CheckIn    string           `json:"check_in_date"`
	CheckOut   string           `json:"check_out_date"`
	PriceData  *extractor.Quote `json:"price_data"`
	RoomsAdded int              `json:"rooms_added"`
	Added      int              `json:"added"`
	Updated    int              `json:"updated"`
}

// SyncPoint extracts and stores the prices of one stay window. A missing
// check-in defaults to today and a missing check-out to the night after
// check-in.
func (s *Synchronizer) SyncPoint(ctx context.Context, listingID int64, checkIn, checkOut string) (PointResult, error) {
	if checkIn == "" {
		checkIn = s.now().UTC().Format(resolver.DateLayout)
	}
	if checkOut == "" {
		in, err := parseDate("check_in_date", checkIn)
		if err != nil {
			return PointResult{}, err
		}
		checkOut = in.AddDate(0, 0, 1).Format(resolver.DateLayout)
	}
	if _, _, err := s.validate(checkIn, checkOut); err != nil {
		return PointResult{}, err
	}

	listing, err := s.ledger.Get(ctx, listingID)
	if err != nil {
		return PointResult{}, err
	}

	release, err := s.locker.Acquire(ctx, lockKey(listing.ID), s.lockTTL)
	if err != nil {
		return PointResult{}, err
	}
	defer release()

	log := logger.ForSync(listing.ID).WithField("mode", "point")
	day, result := s.syncDay(ctx, listing, checkIn, checkOut, log)
	if result.Success {
		s.refreshProfile(ctx, listing.ID, result.Profile, log)
	}

	out := PointResult{
		Success:    day.Success,
		HotelID:    listing.ID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		PriceData:  result.Headline,
		RoomsAdded: day.Added + day.Updated,
		Added:      day.Added,
		Updated:    day.Updated,
	}
	if day.Success {
		out.Message = fmt.Sprintf("Successfully updated prices for %s", listing.Name)
	} else {
		out.Error = day.Error
	}
	return out, nil
}
