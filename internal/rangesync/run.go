package rangesync

import (
	"fmt"
	"time"
)

// Request asks for a synchronization of [StartDate, EndDate)
type Request struct {
	ListingID int64  `json:"hotel_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// DayOutcome is the result of one single-night window
type DayOutcome struct {
	CheckIn  string `json:"check_in_date"`
	CheckOut string `json:"check_out_date"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Quotes   int    `json:"prices_found"`
	Added    int    `json:"added"`
	Updated  int    `json:"updated"`
}

// Run is one range synchronization. Days already written stay written when
// later days fail.
type Run struct {
	ID             string       `json:"run_id"`
	ListingID      int64        `json:"hotel_id"`
	StartDate      string       `json:"start_date"`
	EndDate        string       `json:"end_date"`
	Days           []DayOutcome `json:"days"`
	SuccessfulDays int          `json:"successful_days"`
	FailedDays     int          `json:"failed_days"`
	Added          int          `json:"added"`
	Updated        int          `json:"updated"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
}

func (r *Run) record(day DayOutcome) {
	r.Days = append(r.Days, day)
	if day.Success {
		r.SuccessfulDays++
	} else {
		r.FailedDays++
	}
	r.Added += day.Added
	r.Updated += day.Updated
}

// DateRange echoes the requested window
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TotalDays int    `json:"total_days"`
}

// Results carries the aggregate counters
type Results struct {
	SuccessfulScrapes  int `json:"successful_scrapes"`
	FailedScrapes      int `json:"failed_scrapes"`
	TotalPricesAdded   int `json:"total_prices_added"`
	TotalPricesUpdated int `json:"total_prices_updated"`
}

// Summary is the response shape of a range synchronization
type Summary struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message"`
	RunID          string       `json:"run_id"`
	HotelID        int64        `json:"hotel_id"`
	DateRange      DateRange    `json:"date_range"`
	Results        Results      `json:"results"`
	SuccessfulDays int          `json:"successful_days"`
	FailedDays     int          `json:"failed_days"`
	Added          int          `json:"added"`
	Updated        int          `json:"updated"`
	Days           []DayOutcome `json:"days"`
}

// Summary builds the response for r. It is returned even when every day
// failed.
func (r Run) Summary() Summary {
	total := len(r.Days)
	days := r.Days
	if days == nil {
		days = []DayOutcome{}
	}
	return Summary{
		Success: true,
		Message: fmt.Sprintf("Synchronized %d of %d days from %s to %s (%d added, %d updated)",
			r.SuccessfulDays, total, r.StartDate, r.EndDate, r.Added, r.Updated),
		RunID:     r.ID,
		HotelID:   r.ListingID,
		DateRange: DateRange{StartDate: r.StartDate, EndDate: r.EndDate, TotalDays: total},
		Results: Results{
			SuccessfulScrapes:  r.SuccessfulDays,
			FailedScrapes:      r.FailedDays,
			TotalPricesAdded:   r.Added,
			TotalPricesUpdated: r.Updated,
		},
		SuccessfulDays: r.SuccessfulDays,
		FailedDays:     r.FailedDays,
		Added:          r.Added,
		Updated:        r.Updated,
		Days:           days,
	}
}
