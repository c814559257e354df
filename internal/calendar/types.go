// Package calendar recovers a listing's availability calendar by driving a
// headless browser and intercepting the site's calendar data-fetch.
package calendar

import (
	"encoding/json"
	"time"
)

// Day is one available check-in date from the calendar payload
type Day struct {
	CheckIn         string   `json:"checkin"`
	Available       bool     `json:"available"`
	Price           *float64 `json:"price"`
	PriceFormatted  string   `json:"price_formatted"`
	MinLengthOfStay int      `json:"min_length_of_stay"`
}

// PricingData is the decoded calendar. HotelID is kept verbatim since the
// site sends it either as a number or a string.
type PricingData struct {
	HotelID            json.RawMessage `json:"hotel_id"`
	Days               []Day           `json:"days"`
	TotalAvailableDays int             `json:"total_available_days"`
}

// Result is the outcome of one interactive extraction and the worker
// binary's stdout contract
type Result struct {
	Success           bool         `json:"success"`
	Error             string       `json:"error,omitempty"`
	HotelURL          string       `json:"hotel_url"`
	PricingData       *PricingData `json:"pricing_data,omitempty"`
	TotalDays         int          `json:"total_days"`
	ScrapedAt         time.Time    `json:"scraped_at"`
	RawResponsesCount int          `json:"raw_responses_count"`
}

// Capture holds every response body observed for the trigger's endpoint
type Capture struct {
	Bodies [][]byte
}

func failed(url, message string, at time.Time) Result {
	return Result{
		Success:   false,
		Error:     message,
		HotelURL:  url,
		ScrapedAt: at,
	}
}
