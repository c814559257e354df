package extractor

import (
	"time"

	"sjsage522/hotelpricesync/internal/resolver"
)

// Source identifies the origin site on every quote
const Source = "booking.com"

// Profile holds the hotel attributes recovered from a listing page.
// Every field is optional.
type Profile struct {
	Name        *string  `json:"name,omitempty"`
	Address     *string  `json:"address,omitempty"`
	City        *string  `json:"city,omitempty"`
	Country     *string  `json:"country,omitempty"`
	StarRating  *float64 `json:"star_rating,omitempty"`
	UserRating  *float64 `json:"user_rating,omitempty"`
	RatingCount *int     `json:"user_rating_count,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Amenities   []string `json:"amenities,omitempty"`
}

// Quote is a priced room-type offer for one stay window
type Quote struct {
	CheckIn   string    `json:"check_in_date"`
	CheckOut  string    `json:"check_out_date"`
	RoomType  string    `json:"room_type"`
	BoardType *string   `json:"board_type"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Source    string    `json:"source"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// RoomCandidate is a room label and price as found on the page, before
// validation
type RoomCandidate struct {
	Label     string
	Price     *float64
	BoardType *string
	Currency  string
}

// Result is the outcome of one static extraction. When Success is false,
// Error carries the failure message and the other fields are empty.
type Result struct {
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
	URL       string           `json:"booking_url"`
	CheckIn   string           `json:"check_in_date,omitempty"`
	CheckOut  string           `json:"check_out_date,omitempty"`
	Guests    *resolver.Guests `json:"guest_info,omitempty"`
	Profile   Profile          `json:"hotel_data"`
	Headline  *Quote           `json:"price_data,omitempty"`
	Rooms     []Quote          `json:"rooms_data"`
	ScrapedAt time.Time        `json:"scraped_at"`
}
