// Package ledger stores listings and their nightly price records.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a listing does not exist
var ErrNotFound = errors.New("listing not found")

// ErrDuplicate is returned when a listing with the same booking URL exists
var ErrDuplicate = errors.New("listing url already exists")

// DefaultCurrency applies to records stored without a currency
const DefaultCurrency = "EUR"

// Record is one price for one room type of one listing and stay window.
// Its natural key is (ListingID, CheckIn, CheckOut, RoomType).
type Record struct {
	ListingID int64     `json:"hotel_id"`
	CheckIn   string    `json:"check_in_date"`
	CheckOut  string    `json:"check_out_date"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	RoomType  string    `json:"room_type"`
	BoardType *string   `json:"board_type"`
	Source    string    `json:"source"`
	ScrapedAt time.Time `json:"scraped_at"`
}

type recordKey struct {
	listingID int64
	checkIn   string
	checkOut  string
	roomType  string
}

func (r Record) key() recordKey {
	return recordKey{r.ListingID, r.CheckIn, r.CheckOut, r.RoomType}
}

// Outcome tells whether an upsert created or replaced a record
type Outcome int

const (
	Added Outcome = iota + 1
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Listing is a tracked hotel
type Listing struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	BookingURL  string   `json:"booking_url"`
	Address     *string  `json:"address"`
	City        *string  `json:"city"`
	Country     *string  `json:"country"`
	StarRating  *float64 `json:"star_rating"`
	UserRating  *float64 `json:"user_rating"`
	RatingCount *int     `json:"user_rating_count"`
	Amenities   []string `json:"amenities"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	IsActive    bool     `json:"is_active"`
}

// ProfileUpdate carries freshly extracted listing attributes. Nil fields
// and empty amenities leave the stored value untouched.
type ProfileUpdate struct {
	Name        *string
	Address     *string
	City        *string
	Country     *string
	StarRating  *float64
	UserRating  *float64
	RatingCount *int
	Amenities   []string
	Latitude    *float64
	Longitude   *float64
}

// Empty reports whether applying u would change nothing
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Address == nil && u.City == nil && u.Country == nil &&
		u.StarRating == nil && u.UserRating == nil && u.RatingCount == nil &&
		len(u.Amenities) == 0 && u.Latitude == nil && u.Longitude == nil
}

// Apply overwrites the listing's fields with every non-nil value of u
func (l *Listing) Apply(u ProfileUpdate) {
	if u.Name != nil {
		l.Name = *u.Name
	}
	setString(&l.Address, u.Address)
	setString(&l.City, u.City)
	setString(&l.Country, u.Country)
	setFloat(&l.StarRating, u.StarRating)
	setFloat(&l.UserRating, u.UserRating)
	if u.RatingCount != nil {
		v := *u.RatingCount
		l.RatingCount = &v
	}
	if len(u.Amenities) > 0 {
		l.Amenities = append([]string(nil), u.Amenities...)
	}
	setFloat(&l.Latitude, u.Latitude)
	setFloat(&l.Longitude, u.Longitude)
}

func setString(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}

func setFloat(dst **float64, v *float64) {
	if v != nil {
		f := *v
		*dst = &f
	}
}

// Prices is the price ledger
type Prices interface {
	// Upsert stores r, replacing the record with the same natural key
	Upsert(ctx context.Context, r Record) (Outcome, error)

	// ListByListing returns a listing's records ordered by stay and room type
	ListByListing(ctx context.Context, listingID int64) ([]Record, error)
}

// Listings is the listing store
type Listings interface {
	Get(ctx context.Context, id int64) (*Listing, error)
	Active(ctx context.Context) ([]Listing, error)
	Create(ctx context.Context, l Listing) (*Listing, error)
	ApplyProfile(ctx context.Context, id int64, u ProfileUpdate) error
}

// Store is a ledger backend holding both listings and prices
type Store interface {
	Prices
	Listings
	Close() error
}

func normalize(r Record) Record {
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	return r
}
