package calendar

import (
	"time"

	"sjsage522/hotelpricesync/config"
)

// DefaultEndpoint is the path fragment of the calendar data-fetch
const DefaultEndpoint = "/dml/graphql"

// Locator names one clickable element: the Index-th match of Selector
type Locator struct {
	Selector string
	Index    int
}

// Trigger describes how to make the page issue its calendar request and
// which responses to keep. Locators are tried in order and the first one
// that resolves is clicked.
type Trigger struct {
	EndpointFragment string
	Locators         []Locator
	LoadSettle       time.Duration
	ClickSettle      time.Duration
	NavTimeout       time.Duration
}

// DefaultTrigger opens the date picker of the availability search box
func DefaultTrigger() Trigger {
	return Trigger{
		EndpointFragment: DefaultEndpoint,
		Locators: []Locator{
			{Selector: `#hp_availability_style_changes [data-testid="searchbox-dates-container"]`, Index: 0},
			{Selector: `[data-testid="searchbox-dates-container"]`, Index: 1},
		},
		LoadSettle:  3 * time.Second,
		ClickSettle: 8 * time.Second,
		NavTimeout:  30 * time.Second,
	}
}

// TriggerFromConfig builds the trigger from the CALENDAR_* settings
func TriggerFromConfig(cfg config.Config) Trigger {
	t := DefaultTrigger()
	t.Locators = t.Locators[:0]
	if cfg.CalendarPrimary != "" {
		t.Locators = append(t.Locators, Locator{Selector: cfg.CalendarPrimary})
	}
	if cfg.CalendarFallback != "" {
		t.Locators = append(t.Locators, Locator{Selector: cfg.CalendarFallback, Index: cfg.CalendarFallbackIndex})
	}
	if cfg.CalendarLoadSettle > 0 {
		t.LoadSettle = cfg.CalendarLoadSettle
	}
	if cfg.CalendarClickSettle > 0 {
		t.ClickSettle = cfg.CalendarClickSettle
	}
	return t
}
