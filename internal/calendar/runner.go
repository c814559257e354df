package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/pkg/errors"
	"sjsage522/hotelpricesync/services/cache"
)

const cacheNamespace = "calendar"

// Runner executes each interactive extraction in a fresh worker process so
// a browser crash or hang never reaches the host
type Runner struct {
	path     string
	args     []string
	env      []string
	timeout  time.Duration
	cache    cache.CacheService
	cacheTTL time.Duration
	log      *logger.Logger
	now      func() time.Time
}

var _ Extractor = (*Runner)(nil)

// NewRunner creates a runner spawning the worker binary at path
func NewRunner(path string, timeout time.Duration) *Runner {
	return &Runner{
		path:    path,
		timeout: timeout,
		log:     logger.ForCalendar().WithField("runner", path),
		now:     time.Now,
	}
}

// WithCache keeps successful results in c for ttl. A zero ttl disables it.
func (r *Runner) WithCache(c cache.CacheService, ttl time.Duration) *Runner {
	r.cache = c
	r.cacheTTL = ttl
	return r
}

func (r *Runner) caching() bool {
	return r.cache != nil && r.cacheTTL > 0
}

// Run returns the worker's result for url. Every failure mode, including a
// missing binary, a timeout or garbage on stdout, becomes a failed Result.
func (r *Runner) Run(ctx context.Context, url string) Result {
	key := cache.Key(cacheNamespace, url)
	if r.caching() {
		if b, err := r.cache.Get(key); err == nil {
			var cached Result
			if err := json.Unmarshal(b, &cached); err == nil {
				r.log.Debug().Str("url", url).Msg("Calendar served from cache")
				return cached
			}
		}
	}

	result := r.spawn(ctx, url)

	if result.Success && r.caching() {
		if b, err := json.Marshal(result); err == nil {
			if err := r.cache.Set(key, b, r.cacheTTL); err != nil {
				r.log.Warn().Err(errors.NewCache("calendar", "failed to store result", err)).Msg("Cache write failed")
			}
		}
	}
	return result
}

func (r *Runner) spawn(ctx context.Context, url string) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string{}, r.args...), url)
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Env = append(os.Environ(), r.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	log := r.log.WithFields(logger.Fields{"url": url, "elapsed": time.Since(started).String()})

	if err != nil {
		msg := failureMessage(stdout.Bytes(), stderr.Bytes(), err)
		if ctx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("worker timed out after %s", r.timeout)
		}
		log.Warn().Err(errors.NewWorker("calendar-worker", msg, err)).Msg("Calendar worker failed")
		return failed(url, msg, r.now().UTC())
	}

	var result Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		err = errors.NewParsing("calendar-worker", "invalid worker output", err)
		log.Warn().Err(err).Msg("Calendar worker output unreadable")
		return failed(url, err.Error(), r.now().UTC())
	}
	if result.HotelURL == "" {
		result.HotelURL = url
	}
	log.Info().Bool("success", result.Success).Int("days", result.TotalDays).Msg("Calendar worker finished")
	return result
}

// failureMessage prefers the error the worker reported on stdout, then its
// stderr, then the exit status
func failureMessage(stdout, stderr []byte, exitErr error) string {
	var reported Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &reported); err == nil && reported.Error != "" {
		return reported.Error
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return msg
	}
	return exitErr.Error()
}
