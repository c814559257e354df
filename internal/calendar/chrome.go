package calendar

import (
	"context"
	"strings"

	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/pkg/errors"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeDriver drives a local Chrome over the DevTools protocol with chromedp
type ChromeDriver struct {
	execPath string
	log      *logger.Logger
}

var _ Driver = (*ChromeDriver)(nil)

// NewChromeDriver creates a driver; an empty execPath lets chromedp find Chrome
func NewChromeDriver(execPath string) *ChromeDriver {
	return &ChromeDriver{
		execPath: execPath,
		log:      logger.ForCalendar().WithField("driver", "chromedp"),
	}
}

func (d *ChromeDriver) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1366, 900),
	)
	if d.execPath != "" {
		opts = append(opts, chromedp.ExecPath(d.execPath))
	}
	return opts
}

// Capture opens url in a fresh browser, clicks the first locator that
// resolves and collects the matching response bodies
func (d *ChromeDriver) Capture(ctx context.Context, url string, trigger Trigger) (Capture, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, d.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	ids := make(chan network.RequestID, maxCaptured)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Response == nil || !strings.Contains(resp.Response.URL, trigger.EndpointFragment) {
			return
		}
		select {
		case ids <- resp.RequestID:
		default:
			d.log.Warn().Str("response_url", resp.Response.URL).Msg("Capture buffer full, dropping response")
		}
	})

	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		return Capture{}, errors.NewNetwork("chromedp", "failed to start browser", err)
	}

	d.log.Info().Str("url", url).Msg("Opening page")
	navCtx, cancelNav := context.WithTimeout(browserCtx, trigger.navTimeout())
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	cancelNav()
	if err != nil {
		return Capture{}, errors.NewNetwork("chromedp", "navigation failed", err)
	}

	if err := chromedp.Run(browserCtx, chromedp.Sleep(trigger.LoadSettle)); err != nil {
		return Capture{}, err
	}
	d.click(browserCtx, trigger.Locators)
	if err := chromedp.Run(browserCtx, chromedp.Sleep(trigger.ClickSettle)); err != nil {
		return Capture{}, err
	}

	return d.collect(browserCtx, ids), nil
}

func (d *ChromeDriver) click(ctx context.Context, locators []Locator) bool {
	for _, loc := range locators {
		var nodes []*cdp.Node
		if err := chromedp.Run(ctx, chromedp.Nodes(loc.Selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
			d.log.Debug().Err(err).Str("selector", loc.Selector).Msg("Locator query failed")
			continue
		}
		if len(nodes) <= loc.Index {
			d.log.Debug().Str("selector", loc.Selector).Int("matches", len(nodes)).Msg("Locator did not resolve")
			continue
		}
		if err := chromedp.Run(ctx, chromedp.MouseClickNode(nodes[loc.Index])); err != nil {
			d.log.Warn().Err(err).Str("selector", loc.Selector).Msg("Click failed")
			continue
		}
		d.log.Debug().Str("selector", loc.Selector).Int("index", loc.Index).Msg("Clicked calendar trigger")
		return true
	}
	d.log.Warn().Msg("No calendar trigger could be clicked")
	return false
}

func (d *ChromeDriver) collect(ctx context.Context, ids <-chan network.RequestID) Capture {
	var capture Capture
	for {
		select {
		case id := <-ids:
			var body []byte
			err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				body, err = network.GetResponseBody(id).Do(ctx)
				return err
			}))
			if err != nil {
				d.log.Debug().Err(err).Str("request_id", string(id)).Msg("Response body unavailable")
				continue
			}
			capture.Bodies = append(capture.Bodies, body)
		default:
			return capture
		}
	}
}
