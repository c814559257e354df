// Package resolver derives stay dates and occupancy from listing URLs and
// rewrites listing URLs for a given stay window.
package resolver

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used in listing URLs and requests
const DateLayout = "2006-01-02"

const (
	paramCheckIn  = "checkin"
	paramCheckOut = "checkout"
)

// ListingReference is a listing URL with its resolved stay window and occupancy.
// Empty CheckIn/CheckOut mean the dates are unknown.
type ListingReference struct {
	URL      string
	CheckIn  string
	CheckOut string
	Adults   *int
	Children *int
	Rooms    *int
}

// DatesResolved reports whether both stay dates are known
func (r ListingReference) DatesResolved() bool {
	return r.CheckIn != "" && r.CheckOut != ""
}

// Guests is the occupancy part of a reference, omitted fields unknown
type Guests struct {
	Adults   *int `json:"adults,omitempty"`
	Children *int `json:"children,omitempty"`
	Rooms    *int `json:"rooms,omitempty"`
}

// Guests returns the occupancy or nil when none was found
func (r ListingReference) Guests() *Guests {
	if r.Adults == nil && r.Children == nil && r.Rooms == nil {
		return nil
	}
	return &Guests{Adults: r.Adults, Children: r.Children, Rooms: r.Rooms}
}

// Resolve builds a ListingReference from rawURL. Explicit checkIn/checkOut
// override dates embedded in the URL and must be ISO dates. A URL-embedded
// date that does not parse is treated as missing. When both dates are known
// the URL is rewritten to carry them. Missing dates are not an error.
func Resolve(rawURL, checkIn, checkOut string) (ListingReference, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ListingReference{}, fmt.Errorf("parse listing url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return ListingReference{}, fmt.Errorf("listing url %q is not absolute", rawURL)
	}

	for _, d := range []string{checkIn, checkOut} {
		if d = strings.TrimSpace(d); d != "" {
			if _, err := time.Parse(DateLayout, d); err != nil {
				return ListingReference{}, fmt.Errorf("invalid stay date %q: %w", d, err)
			}
		}
	}

	q := u.Query()
	ref := ListingReference{
		URL:      u.String(),
		CheckIn:  firstNonEmpty(checkIn, isoDate(q.Get(paramCheckIn))),
		CheckOut: firstNonEmpty(checkOut, isoDate(q.Get(paramCheckOut))),
		Adults:   intParam(q, "req_adults", "group_adults"),
		Children: intParam(q, "req_children", "group_children"),
		Rooms:    intParam(q, "no_rooms"),
	}

	if ref.DatesResolved() {
		ref.URL, err = WithDates(ref.URL, ref.CheckIn, ref.CheckOut)
		if err != nil {
			return ListingReference{}, err
		}
	}
	return ref, nil
}

// WithDates returns rawURL carrying the given stay window. Existing
// checkin/checkout values are replaced in place, missing ones are appended,
// and every other query pair keeps its order and encoding.
func WithDates(rawURL, checkIn, checkOut string) (string, error) {
	for _, d := range []string{checkIn, checkOut} {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return "", fmt.Errorf("invalid stay date %q: %w", d, err)
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}

	want := map[string]string{paramCheckIn: checkIn, paramCheckOut: checkOut}
	seen := map[string]bool{}

	var pairs []string
	if u.RawQuery != "" {
		pairs = strings.Split(u.RawQuery, "&")
	}
	out := make([]string, 0, len(pairs)+2)
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if name, err := url.QueryUnescape(key); err == nil {
			if v, ok := want[name]; ok {
				if seen[name] {
					continue
				}
				seen[name] = true
				out = append(out, name+"="+url.QueryEscape(v))
				continue
			}
		}
		out = append(out, pair)
	}
	for _, name := range []string{paramCheckIn, paramCheckOut} {
		if !seen[name] {
			out = append(out, name+"="+url.QueryEscape(want[name]))
		}
	}

	u.RawQuery = strings.Join(out, "&")
	return u.String(), nil
}

func isoDate(s string) string {
	if _, err := time.Parse(DateLayout, strings.TrimSpace(s)); err != nil {
		return ""
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// intParam returns the first key that parses as an integer
func intParam(q url.Values, keys ...string) *int {
	for _, k := range keys {
		if v, err := strconv.Atoi(q.Get(k)); err == nil {
			return &v
		}
	}
	return nil
}
