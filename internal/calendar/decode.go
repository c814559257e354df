package calendar

import (
	"encoding/json"

	"sjsage522/hotelpricesync/internal/pricing"
)

const defaultPriceFormatted = "€0"

type rawDay struct {
	CheckIn           string  `json:"checkin"`
	Available         bool    `json:"available"`
	AvgPriceFormatted *string `json:"avgPriceFormatted"`
	MinLengthOfStay   *int    `json:"minLengthOfStay"`
}

type rawCalendar struct {
	HotelID json.RawMessage `json:"hotelId"`
	Days    []rawDay        `json:"days"`
}

type rawPayload struct {
	Data *struct {
		AvailabilityCalendar *rawCalendar `json:"availabilityCalendar"`
	} `json:"data"`
}

// Decode reads captured bodies and returns the calendar together with the
// number of bodies that were valid JSON. Non-JSON bodies are skipped and
// the first body carrying data.availabilityCalendar wins. Unavailable days
// are dropped.
func Decode(bodies [][]byte) (PricingData, int) {
	data := PricingData{Days: []Day{}}
	var calendar *rawCalendar
	parsed := 0

	for _, body := range bodies {
		if !json.Valid(body) {
			continue
		}
		parsed++
		if calendar != nil {
			continue
		}
		var payload rawPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			continue
		}
		if payload.Data != nil && payload.Data.AvailabilityCalendar != nil {
			calendar = payload.Data.AvailabilityCalendar
		}
	}
	if calendar == nil {
		return data, parsed
	}

	if len(calendar.HotelID) > 0 {
		data.HotelID = calendar.HotelID
	}
	for _, d := range calendar.Days {
		if !d.Available {
			continue
		}
		day := Day{
			CheckIn:         d.CheckIn,
			Available:       true,
			PriceFormatted:  defaultPriceFormatted,
			MinLengthOfStay: 1,
		}
		if d.AvgPriceFormatted != nil {
			day.PriceFormatted = *d.AvgPriceFormatted
		}
		if d.MinLengthOfStay != nil {
			day.MinLengthOfStay = *d.MinLengthOfStay
		}
		if v, ok := pricing.ParseFormatted(day.PriceFormatted); ok {
			day.Price = &v
		}
		data.Days = append(data.Days, day)
	}
	data.TotalAvailableDays = len(data.Days)
	return data, parsed
}
