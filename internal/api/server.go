// Package api exposes listing synchronization and extraction over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"sjsage522/hotelpricesync/internal/calendar"
	"sjsage522/hotelpricesync/internal/extractor"
	"sjsage522/hotelpricesync/internal/ledger"
	"sjsage522/hotelpricesync/internal/rangesync"
	"sjsage522/hotelpricesync/logger"

	"github.com/didip/tollbooth/v7"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const (
	serviceName    = "hotel-scraper"
	serviceVersion = "1.0.0"
)

// Syncer writes price records for a listing
type Syncer interface {
	Sync(ctx context.Context, req rangesync.Request) (rangesync.Run, error)
	SyncPoint(ctx context.Context, listingID int64, checkIn, checkOut string) (rangesync.PointResult, error)
}

// Store is the part of the ledger read and written by the handlers
type Store interface {
	ledger.Prices
	ledger.Listings
}

// Options configures the HTTP surface
type Options struct {
	AllowedOrigins []string
	// RateLimit is the number of requests per second allowed per client;
	// zero disables limiting
	RateLimit float64
}

// Server holds the handlers' collaborators
type Server struct {
	syncer    Syncer
	store     Store
	extractor extractor.Extractor
	calendar  calendar.Extractor
	opts      Options
	log       *logger.Logger
	now       func() time.Time
}

// NewServer creates a server
func NewServer(syncer Syncer, store Store, ex extractor.Extractor, cal calendar.Extractor, opts Options) *Server {
	return &Server{
		syncer:    syncer,
		store:     store,
		extractor: ex,
		calendar:  cal,
		opts:      opts,
		log:       logger.ForServer(),
		now:       time.Now,
	}
}

// Router returns the bare route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods("GET")

	scraping := r.PathPrefix("/scraping").Subrouter()
	scraping.HandleFunc("/status", s.status).Methods("GET")
	scraping.HandleFunc("/scrape-date-range/{hotelId}", s.scrapeDateRange).Methods("POST")
	scraping.HandleFunc("/update-prices/{hotelId}", s.updatePrices).Methods("POST")
	scraping.HandleFunc("/hotel", s.scrapeHotel).Methods("POST")
	scraping.HandleFunc("/calendar", s.scrapeCalendar).Methods("POST")

	r.HandleFunc("/hotels", s.listHotels).Methods("GET")
	r.HandleFunc("/hotels", s.createHotel).Methods("POST")
	r.HandleFunc("/hotels/{hotelId}", s.getHotel).Methods("GET")
	r.HandleFunc("/hotels/{hotelId}/prices", s.hotelPrices).Methods("GET")
	return r
}

// Handler returns the router wrapped with rate limiting and CORS
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()

	if s.opts.RateLimit > 0 {
		lmt := tollbooth.NewLimiter(s.opts.RateLimit, nil)
		lmt.SetMessageContentType("application/json")
		lmt.SetMessage(`{"error":"rate limit exceeded"}`)
		h = tollbooth.LimitHandler(lmt, h)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(h)
}

// NewHTTPServer wraps the handler in an http.Server listening on addr.
// Write timeout is left open since a range sync can run for minutes.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
