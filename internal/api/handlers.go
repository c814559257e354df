package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"sjsage522/hotelpricesync/internal/extractor"
	"sjsage522/hotelpricesync/internal/ledger"
	"sjsage522/hotelpricesync/internal/rangesync"
	"sjsage522/hotelpricesync/internal/resolver"
	"sjsage522/hotelpricesync/pkg/errors"

	"github.com/gorilla/mux"
)

type dateRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type scrapeRequest struct {
	BookingURL   string `json:"booking_url"`
	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`
}

type createHotelRequest struct {
	Name       string `json:"name"`
	BookingURL string `json:"booking_url"`
}

// absoluteURL accepts any absolute http(s) URL. Dates embedded in the
// query are not checked here; range and point syncs pass explicit dates.
func absoluteURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.NewValidation("api", "invalid booking url "+strconv.Quote(raw))
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "operational",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": s.now().UTC(),
	})
}

func hotelID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["hotelId"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidation("api", "invalid hotel id "+strconv.Quote(raw))
	}
	return id, nil
}

func (s *Server) scrapeDateRange(w http.ResponseWriter, r *http.Request) {
	id, err := hotelID(r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	var req dateRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	run, err := s.syncer.Sync(r.Context(), rangesync.Request{
		ListingID: id,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run.Summary())
}

func (s *Server) updatePrices(w http.ResponseWriter, r *http.Request) {
	id, err := hotelID(r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	q := r.URL.Query()
	result, err := s.syncer.SyncPoint(r.Context(), id, q.Get("check_in_date"), q.Get("check_out_date"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// scrapeHotel runs a static extraction without touching the ledger
func (s *Server) scrapeHotel(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := extractor.ExtractURL(r.Context(), s.extractor, req.BookingURL, req.CheckInDate, req.CheckOutDate)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) scrapeCalendar(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := absoluteURL(req.BookingURL); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.calendar.Run(r.Context(), req.BookingURL))
}

func (s *Server) listHotels(w http.ResponseWriter, r *http.Request) {
	listings, err := s.store.Active(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if city := strings.ToLower(r.URL.Query().Get("city")); city != "" {
		filtered := listings[:0]
		for _, l := range listings {
			if l.City != nil && strings.Contains(strings.ToLower(*l.City), city) {
				filtered = append(filtered, l)
			}
		}
		listings = filtered
	}
	if listings == nil {
		listings = []ledger.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) createHotel(w http.ResponseWriter, r *http.Request) {
	var req createHotelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := absoluteURL(req.BookingURL); err != nil {
		s.writeFailure(w, err)
		return
	}

	listing, err := s.store.Create(r.Context(), ledger.Listing{
		Name:       strings.TrimSpace(req.Name),
		BookingURL: strings.TrimSpace(req.BookingURL),
		IsActive:   true,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (s *Server) getHotel(w http.ResponseWriter, r *http.Request) {
	id, err := hotelID(r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	listing, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// hotelPrices lists a listing's records, newest check-in first, optionally
// bounded by start_date and end_date on the check-in date
func (s *Server) hotelPrices(w http.ResponseWriter, r *http.Request) {
	id, err := hotelID(r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	q := r.URL.Query()
	from, to := q.Get("start_date"), q.Get("end_date")
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(resolver.DateLayout, d); err != nil {
			writeError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD")
			return
		}
	}

	records, err := s.store.ListByListing(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	out := make([]ledger.Record, 0, len(records))
	for _, rec := range records {
		if from != "" && rec.CheckIn < from {
			continue
		}
		if to != "" && rec.CheckIn > to {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckIn > out[j].CheckIn })
	writeJSON(w, http.StatusOK, out)
}
