package rangesync

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter spaces requests to the same host by a fixed interval. One
// instance is shared by every run in the process so that concurrent runs
// still respect the delay.
type HostLimiter struct {
	mu       sync.Mutex
	every    time.Duration
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter allowing one request per host every
// interval. A non-positive interval disables waiting.
func NewHostLimiter(every time.Duration) *HostLimiter {
	return &HostLimiter{
		every:    every,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(h.every), 1)
		h.limiters[host] = l
	}
	return l
}

// Wait blocks until a request to rawURL's host is allowed. The first
// request to a host never waits.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	if h == nil || h.every <= 0 {
		return ctx.Err()
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	return h.limiter(host).Wait(ctx)
}
