package calendar

import (
	"context"
	"time"

	"sjsage522/hotelpricesync/config"
)

// Driver loads a page in a headless browser, fires the trigger and returns
// every intercepted response body for the trigger's endpoint
type Driver interface {
	Capture(ctx context.Context, url string, trigger Trigger) (Capture, error)
}

const (
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxCaptured = 256
)

// NewDriver returns the driver selected by CALENDAR_DRIVER
func NewDriver(cfg config.Config) Driver {
	if cfg.CalendarDriver == "rod" {
		return NewRodDriver(cfg.ChromePath)
	}
	return NewChromeDriver(cfg.ChromePath)
}

func (t Trigger) navTimeout() time.Duration {
	if t.NavTimeout <= 0 {
		return DefaultTrigger().NavTimeout
	}
	return t.NavTimeout
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
