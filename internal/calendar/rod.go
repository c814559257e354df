package calendar

import (
	"context"
	"encoding/base64"
	"strings"

	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/pkg/errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodDriver drives Chromium through go-rod
type RodDriver struct {
	bin string
	log *logger.Logger
}

var _ Driver = (*RodDriver)(nil)

// NewRodDriver creates a driver; an empty bin lets the launcher find or
// download a browser
func NewRodDriver(bin string) *RodDriver {
	return &RodDriver{
		bin: bin,
		log: logger.ForCalendar().WithField("driver", "rod"),
	}
}

// Capture performs the same sequence as ChromeDriver.Capture
func (d *RodDriver) Capture(ctx context.Context, url string, trigger Trigger) (Capture, error) {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true).
		Leakless(false)
	if d.bin != "" {
		l = l.Bin(d.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return Capture{}, errors.NewNetwork("rod", "failed to launch browser", err)
	}
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return Capture{}, errors.NewNetwork("rod", "failed to connect to browser", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return Capture{}, errors.NewNetwork("rod", "failed to open page", err)
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return Capture{}, errors.NewNetwork("rod", "failed to enable network events", err)
	}

	ids := make(chan proto.NetworkRequestID, maxCaptured)
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Response == nil || !strings.Contains(e.Response.URL, trigger.EndpointFragment) {
			return
		}
		select {
		case ids <- e.RequestID:
		default:
			d.log.Warn().Str("response_url", e.Response.URL).Msg("Capture buffer full, dropping response")
		}
	})
	go wait()

	d.log.Info().Str("url", url).Msg("Opening page")
	nav := page.Timeout(trigger.navTimeout())
	if err := nav.Navigate(url); err != nil {
		return Capture{}, errors.NewNetwork("rod", "navigation failed", err)
	}
	if err := nav.WaitLoad(); err != nil {
		return Capture{}, errors.NewNetwork("rod", "page did not load", err)
	}

	if err := sleep(ctx, trigger.LoadSettle); err != nil {
		return Capture{}, err
	}
	d.click(page.Timeout(trigger.navTimeout()), trigger.Locators)
	if err := sleep(ctx, trigger.ClickSettle); err != nil {
		return Capture{}, err
	}

	return d.collect(page, ids), nil
}

func (d *RodDriver) click(page *rod.Page, locators []Locator) bool {
	for _, loc := range locators {
		elements, err := page.Elements(loc.Selector)
		if err != nil {
			d.log.Debug().Err(err).Str("selector", loc.Selector).Msg("Locator query failed")
			continue
		}
		if len(elements) <= loc.Index {
			d.log.Debug().Str("selector", loc.Selector).Int("matches", len(elements)).Msg("Locator did not resolve")
			continue
		}
		if err := elements[loc.Index].Click(proto.InputMouseButtonLeft, 1); err != nil {
			d.log.Warn().Err(err).Str("selector", loc.Selector).Msg("Click failed")
			continue
		}
		d.log.Debug().Str("selector", loc.Selector).Int("index", loc.Index).Msg("Clicked calendar trigger")
		return true
	}
	d.log.Warn().Msg("No calendar trigger could be clicked")
	return false
}

func (d *RodDriver) collect(page *rod.Page, ids <-chan proto.NetworkRequestID) Capture {
	var capture Capture
	for {
		select {
		case id := <-ids:
			res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page)
			if err != nil {
				d.log.Debug().Err(err).Str("request_id", string(id)).Msg("Response body unavailable")
				continue
			}
			body := []byte(res.Body)
			if res.Base64Encoded {
				if body, err = base64.StdEncoding.DecodeString(res.Body); err != nil {
					continue
				}
			}
			capture.Bodies = append(capture.Bodies, body)
		default:
			return capture
		}
	}
}
