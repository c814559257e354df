package calendar

import (
	"context"
	"time"

	"sjsage522/hotelpricesync/logger"
)

// Extractor runs one interactive extraction for a listing URL
type Extractor interface {
	Run(ctx context.Context, url string) Result
}

// Engine runs a driver in the current process. It is what the worker
// binary executes; hosts use Runner instead.
type Engine struct {
	driver  Driver
	trigger Trigger
	log     *logger.Logger
	now     func() time.Time
}

var _ Extractor = (*Engine)(nil)

// NewEngine creates an engine
func NewEngine(driver Driver, trigger Trigger) *Engine {
	return &Engine{
		driver:  driver,
		trigger: trigger,
		log:     logger.ForCalendar(),
		now:     time.Now,
	}
}

// Run captures the calendar responses for url and decodes them. A page
// without calendar data is a success with no days.
func (e *Engine) Run(ctx context.Context, url string) Result {
	log := e.log.WithField("url", url)

	capture, err := e.driver.Capture(ctx, url, e.trigger)
	if err != nil {
		log.Error().Err(err).Msg("Calendar capture failed")
		return failed(url, err.Error(), e.now().UTC())
	}

	data, parsed := Decode(capture.Bodies)
	if data.TotalAvailableDays == 0 {
		log.Warn().Int("responses", len(capture.Bodies)).Msg("No availability calendar captured")
	} else {
		log.Info().
			Int("responses", len(capture.Bodies)).
			Int("available_days", data.TotalAvailableDays).
			Msg("Calendar captured")
	}

	return Result{
		Success:           true,
		HotelURL:          url,
		PricingData:       &data,
		TotalDays:         len(data.Days),
		ScrapedAt:         e.now().UTC(),
		RawResponsesCount: parsed,
	}
}
