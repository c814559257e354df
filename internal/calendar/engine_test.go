package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"sjsage522/hotelpricesync/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	capture Capture
	err     error
	urls    []string
	trigger Trigger
}

func (f *fakeDriver) Capture(ctx context.Context, url string, trigger Trigger) (Capture, error) {
	f.urls = append(f.urls, url)
	f.trigger = trigger
	return f.capture, f.err
}

const hotelURL = "https://www.booking.com/hotel/fr/brach-paris.html"

func TestEngineRun(t *testing.T) {
	driver := &fakeDriver{capture: Capture{Bodies: [][]byte{[]byte("{}"), []byte(calendarBody)}}}
	engine := NewEngine(driver, DefaultTrigger())
	engine.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	result := engine.Run(context.Background(), hotelURL)

	require.True(t, result.Success)
	assert.Equal(t, hotelURL, result.HotelURL)
	assert.Equal(t, 4, result.TotalDays)
	assert.Equal(t, 2, result.RawResponsesCount)
	require.NotNil(t, result.PricingData)
	assert.Equal(t, 4, result.PricingData.TotalAvailableDays)
	assert.Equal(t, []string{hotelURL}, driver.urls)
	assert.Equal(t, DefaultEndpoint, driver.trigger.EndpointFragment)
}

func TestEngineRunWithoutCalendarIsSuccess(t *testing.T) {
	engine := NewEngine(&fakeDriver{}, DefaultTrigger())

	result := engine.Run(context.Background(), hotelURL)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.TotalDays)
	require.NotNil(t, result.PricingData)
	assert.Empty(t, result.PricingData.Days)
}

func TestEngineRunDriverFailure(t *testing.T) {
	engine := NewEngine(&fakeDriver{err: errors.New("chrome failed to start")}, DefaultTrigger())

	result := engine.Run(context.Background(), hotelURL)

	assert.False(t, result.Success)
	assert.Equal(t, "chrome failed to start", result.Error)
	assert.Equal(t, hotelURL, result.HotelURL)
	assert.Nil(t, result.PricingData)
}

func TestTriggerFromConfig(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.CalendarPrimary = "#dates"
	cfg.CalendarFallback = ".date-box"
	cfg.CalendarFallbackIndex = 2
	cfg.CalendarClickSettle = time.Second

	trigger := TriggerFromConfig(cfg)

	assert.Equal(t, []Locator{{Selector: "#dates"}, {Selector: ".date-box", Index: 2}}, trigger.Locators)
	assert.Equal(t, time.Second, trigger.ClickSettle)
	assert.Equal(t, 3*time.Second, trigger.LoadSettle)
	assert.Equal(t, DefaultEndpoint, trigger.EndpointFragment)
	assert.Len(t, DefaultTrigger().Locators, 2, "default trigger is not mutated")
}

func TestNewDriverSelection(t *testing.T) {
	cfg := config.LoadConfig()
	assert.IsType(t, &ChromeDriver{}, NewDriver(cfg))

	cfg.CalendarDriver = "rod"
	assert.IsType(t, &RodDriver{}, NewDriver(cfg))
}
