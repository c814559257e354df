// Package extractor recovers a hotel profile and room prices from a
// listing page's static markup.
package extractor

import (
	"context"
	"io"
	"time"

	"sjsage522/hotelpricesync/helpers"
	"sjsage522/hotelpricesync/internal/resolver"
	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// FetchFunc fetches a page body
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

// Extractor is the static extraction contract used by the synchronizer
type Extractor interface {
	Extract(ctx context.Context, ref resolver.ListingReference) Result
}

// Engine implements Extractor over plain HTTP fetches
type Engine struct {
	fetchFunc FetchFunc
	log       *logger.Logger
	now       func() time.Time
}

var _ Extractor = (*Engine)(nil)

// NewEngine creates an engine fetching pages with fetch. A nil fetch uses
// helpers.FetchWithRandomHeaders.
func NewEngine(fetch FetchFunc) *Engine {
	if fetch == nil {
		fetch = helpers.FetchWithRandomHeaders
	}
	return &Engine{
		fetchFunc: fetch,
		log:       logger.ForExtractor(),
		now:       time.Now,
	}
}

// Extract fetches ref.URL exactly once and applies every strategy chain.
// Any fetch or parse failure is reported in the result, not returned.
func (e *Engine) Extract(ctx context.Context, ref resolver.ListingReference) Result {
	scrapedAt := e.now().UTC()
	log := e.log.WithFields(logger.Fields{"url": ref.URL, "check_in": ref.CheckIn})

	body, err := e.fetchFunc(ctx, ref.URL)
	if err != nil {
		log.Warn().Err(err).Msg("Fetch failed")
		return failure(ref, err, scrapedAt)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		err = errors.NewParsing(Source, "failed to parse HTML", err)
		log.Warn().Err(err).Msg("Parse failed")
		return failure(ref, err, scrapedAt)
	}

	result := parseDocument(doc, ref, scrapedAt, log)
	log.Debug().
		Bool("has_name", result.Profile.Name != nil).
		Bool("has_headline", result.Headline != nil).
		Int("rooms", len(result.Rooms)).
		Msg("Extraction finished")
	return result
}

// ExtractURL resolves rawURL with optional explicit dates and runs ex on
// the resulting stay. Only a resolve failure is returned as an error.
func ExtractURL(ctx context.Context, ex Extractor, rawURL, checkIn, checkOut string) (Result, error) {
	ref, err := resolver.Resolve(rawURL, checkIn, checkOut)
	if err != nil {
		return Result{}, errors.NewValidation("resolver", err.Error())
	}
	return ex.Extract(ctx, ref), nil
}

// Parse runs every strategy against an already fetched page
func Parse(r io.Reader, ref resolver.ListingReference, scrapedAt time.Time) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, errors.NewParsing(Source, "failed to parse HTML", err)
	}
	return parseDocument(doc, ref, scrapedAt, logger.ForExtractor()), nil
}

func parseDocument(doc *goquery.Document, ref resolver.ListingReference, scrapedAt time.Time, log *logger.Logger) Result {
	p := newPage(doc)

	headline, _ := extractHeadline(p, ref.CheckIn, ref.CheckOut)
	if headline != nil {
		headline.ScrapedAt = scrapedAt
	}

	rooms := []Quote{}
	for _, strategy := range roomStrategies {
		candidates, ok := strategy(p)
		if !ok {
			continue
		}
		if quotes := promote(candidates, ref.CheckIn, ref.CheckOut, scrapedAt, log); len(quotes) > 0 {
			rooms = quotes
			break
		}
	}

	return Result{
		Success:   true,
		URL:       ref.URL,
		CheckIn:   ref.CheckIn,
		CheckOut:  ref.CheckOut,
		Guests:    ref.Guests(),
		Profile:   extractProfile(p),
		Headline:  headline,
		Rooms:     rooms,
		ScrapedAt: scrapedAt,
	}
}

func failure(ref resolver.ListingReference, err error, scrapedAt time.Time) Result {
	return Result{
		Success:   false,
		Error:     err.Error(),
		URL:       ref.URL,
		CheckIn:   ref.CheckIn,
		CheckOut:  ref.CheckOut,
		Rooms:     []Quote{},
		ScrapedAt: scrapedAt,
	}
}
