package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var namePatterns = mustCompile(
	`"b_hotel_name":\s*['"]([^'"]+)['"]`,
	`"hotel_name":\s*['"]([^'"]+)['"]`,
	`"propertyName":\s*['"]([^'"]+)['"]`,
	`"name":\s*['"]([^'"]+)['"][^}]*"@type":\s*"Hotel"`,
	`b_hotel_name_en_with_translation:\s*['"]([^'"]+)['"]`,
)

var nameSelectors = []string{
	`h1[data-testid="property-header"]`,
	`h1.pp-header__title`,
	`h1[class*="title"]`,
	`h1`,
	`[data-testid="property-header"] h1`,
	`.hp__hotel-title`,
	`.hp__hotel-name`,
}

var nameNoise = mustCompile(
	`(?i)\s*\([^)]*updated prices[^)]*\)`,
	`(?i)\s*\([^)]*\b20\d\d\b[^)]*\)`,
	`\s+[-–]\s+[^-–]*$`,
	`\s*★+\s*`,
	`\s*\([^)]*\)\s*$`,
)

var nameHeadingKeywords = []string{"hotel", "hostel", "inn"}

var nameStrategies = []Strategy[string]{
	cleanedName(scriptPattern(namePatterns, longerThan(3))),
	cleanedName(selectorText(nameSelectors, longerThan(3))),
	cleanedName(headingWithKeyword),
}

// cleanHotelName strips decorations such as "(updated prices 2025)", star
// glyphs and trailing location suffixes from a scraped hotel name
func cleanHotelName(name string) string {
	for _, re := range nameNoise {
		name = re.ReplaceAllString(name, "")
	}
	return strings.Join(strings.Fields(name), " ")
}

func cleanedName(s Strategy[string]) Strategy[string] {
	return func(p *page) (string, bool) {
		v, ok := s(p)
		if !ok {
			return "", false
		}
		v = cleanHotelName(v)
		return v, v != ""
	}
}

func headingWithKeyword(p *page) (string, bool) {
	var found string
	p.doc.Find("h1, h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := text(s)
		lower := strings.ToLower(t)
		for _, kw := range nameHeadingKeywords {
			if strings.Contains(lower, kw) {
				found = t
				return false
			}
		}
		return true
	})
	return found, found != ""
}

var addressSelectors = []string{
	`[data-testid="property-location"]`,
	`.hp-address`,
	`[class*="address"]`,
	`.hp__hotel-address`,
	`.hp__hotel-location`,
	`[data-testid="address"]`,
	`.address`,
	`.location`,
	`.property-address`,
	`.hotel-address`,
}

var formattedAddressPattern = mustCompile(`"formattedAddress":"([^"]+)"`)

var breadcrumbSelectors = []string{
	`.breadcrumb`,
	`[data-testid="breadcrumb"]`,
	`.hp__breadcrumb`,
	`nav[aria-label*="breadcrumb"]`,
	`.breadcrumbs`,
}

var postalPrefix = regexp.MustCompile(`^[\d-]+\s+`)

// embeddedAddress is the structured address found in page scripts
type embeddedAddress struct {
	full    string
	city    string
	country string
}

func parseFormattedAddress(address string) embeddedAddress {
	out := embeddedAddress{full: address}
	parts := strings.Split(address, ",")
	if len(parts) >= 2 {
		out.city = strings.TrimSpace(postalPrefix.ReplaceAllString(strings.TrimSpace(parts[len(parts)-2]), ""))
		out.country = strings.TrimSpace(parts[len(parts)-1])
	}
	return out
}

func fromFormattedAddress(pick func(embeddedAddress) string) Strategy[string] {
	return func(p *page) (string, bool) {
		full, ok := scriptPattern(formattedAddressPattern, anyText)(p)
		if !ok {
			return "", false
		}
		v := pick(parseFormattedAddress(full))
		return v, v != ""
	}
}

// breadcrumbLink picks a link from the first breadcrumb with at least
// minLinks links
func breadcrumbLink(minLinks int, pick func(links *goquery.Selection) *goquery.Selection) Strategy[string] {
	return func(p *page) (string, bool) {
		for _, sel := range breadcrumbSelectors {
			crumb := p.doc.Find(sel).First()
			if crumb.Length() == 0 {
				continue
			}
			links := crumb.Find("a")
			if links.Length() >= minLinks {
				if t := text(pick(links)); t != "" {
					return t, true
				}
			}
		}
		return "", false
	}
}

var addressStrategies = []Strategy[string]{
	selectorText(addressSelectors, longerThan(5)),
	metaContent("og:street-address"),
	fromFormattedAddress(func(a embeddedAddress) string { return a.full }),
}

var cityStrategies = []Strategy[string]{
	breadcrumbLink(2, func(l *goquery.Selection) *goquery.Selection { return l.Eq(1) }),
	metaContent("og:locality"),
	fromFormattedAddress(func(a embeddedAddress) string { return a.city }),
}

var countryStrategies = []Strategy[string]{
	breadcrumbLink(3, func(l *goquery.Selection) *goquery.Selection { return l.Last() }),
	metaContent("og:country-name"),
	fromFormattedAddress(func(a embeddedAddress) string { return a.country }),
}

var (
	firstInteger = regexp.MustCompile(`\d+`)
	firstDecimal = regexp.MustCompile(`\d+(?:\.\d+)?`)
	starLabel    = regexp.MustCompile(`(?i)(\d+)\s*star`)
	digitsGroup  = regexp.MustCompile(`[\d,]+`)
	reviewsCount = regexp.MustCompile(`(?i)([\d,]+)\s*reviews?`)
)

var starSelectors = []string{
	`[data-testid="property-star-rating"]`,
	`.hp__hotel-rating`,
	`[class*="star"]`,
	`.star-rating`,
	`.hotel-stars`,
	`[aria-label*="star"]`,
}

func starValue(s string) (float64, bool) {
	m := firstInteger.FindString(s)
	if m == "" {
		return 0, false
	}
	v, ok := parseFloat(m)
	return v, ok && v > 0 && v <= 5
}

func starsFromAriaLabel(p *page) (float64, bool) {
	var stars float64
	p.doc.Find("[aria-label]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label, _ := s.Attr("aria-label")
		if m := starLabel.FindStringSubmatch(label); m != nil {
			if v, ok := starValue(m[1]); ok {
				stars = v
				return false
			}
		}
		return true
	})
	return stars, stars > 0
}

var starStrategies = []Strategy[float64]{
	mapped(selectorText(starSelectors, func(s string) bool { _, ok := starValue(s); return ok }), starValue),
	starsFromAriaLabel,
}

var userRatingSelectors = []string{
	`[data-testid="review-score"] .b5cd09854e`,
	`.hp__hotel-rating-score`,
	`[class*="rating"]`,
	`.review-score`,
	`.user-rating`,
	`[data-testid="review-score"]`,
	`.hp__hotel-rating`,
}

var reviewScorePatterns = mustCompile(
	`"b_review_score_detailed":\s*['"]([0-9.]+)['"]`,
	`"review_score":\s*['"]([0-9.]+)['"]`,
	`data-review-score="([0-9.]+)"`,
	`review_score["']?\s*:\s*["']?([0-9.]+)`,
	`b_review_score_detailed["']?\s*:\s*["']?([0-9.]+)`,
)

// ratingValue reads a review score, scaling 100-point scores to 10
func ratingValue(s string) (float64, bool) {
	m := firstDecimal.FindString(s)
	if m == "" {
		return 0, false
	}
	v, ok := parseFloat(m)
	if !ok {
		return 0, false
	}
	if v > 10 {
		v = v / 10
	}
	return v, v > 0 && v <= 10
}

func acceptRating(s string) bool {
	_, ok := ratingValue(s)
	return ok
}

var userRatingStrategies = []Strategy[float64]{
	mapped(selectorText(userRatingSelectors, acceptRating), ratingValue),
	mapped(scriptPattern(reviewScorePatterns, acceptRating), ratingValue),
}

var ratingCountSelectors = []string{
	`[data-testid="review-score"] .b5cd09854e + span`,
	`.hp__hotel-rating-score + span`,
	`[class*="review-count"]`,
	`.review-count`,
	`.reviews-count`,
}

func countValue(s string) (int, bool) {
	m := strings.ReplaceAll(digitsGroup.FindString(s), ",", "")
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	return v, err == nil
}

func countNearReviewScore(p *page) (int, bool) {
	var count int
	var found bool
	p.doc.Find(`[data-testid="review-score"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := reviewsCount.FindStringSubmatch(text(s.Parent())); m != nil {
			count, found = countValue(m[1])
			return !found
		}
		return true
	})
	return count, found
}

var ratingCountStrategies = []Strategy[int]{
	mapped(selectorText(ratingCountSelectors, func(s string) bool { _, ok := countValue(s); return ok }), countValue),
	countNearReviewScore,
}

var amenitySelectors = []string{
	`[data-testid="property-facilities"] .b5cd09854e`,
	`.hp-amenity-list li`,
	`[class*="amenity"]`,
	`.amenities li`,
	`.facilities li`,
	`[data-testid="facilities"] li`,
	`.hp__hotel-amenities li`,
	`[data-testid="facility-icon"]`,
	`[data-testid="amenity-icon"]`,
}

var amenityPatterns = mustCompile(
	`"title":"([^"]+)"[^}]*"__typename":"BaseFacility"`,
	`"title":"([^"]+)"[^}]*"__typename":"GenericFacilityHighlight"`,
	`"title":"([^"]+)"[^}]*"__typename":"WifiFacilityHighlight"`,
	`"title":"([^"]+)"[^}]*"level":"(?:room|property)"`,
)

const maxAmenities = 20

// appendUnique appends v unless present, keeping first-seen order
func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func capAmenities(list []string) []string {
	if len(list) > maxAmenities {
		return list[:maxAmenities]
	}
	return list
}

func amenitiesFromSelectors(p *page) ([]string, bool) {
	for _, sel := range amenitySelectors {
		var found []string
		p.doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			t := text(s)
			if t == "" {
				t = text(s.Parent())
			}
			if n := len([]rune(t)); n > 2 && n < 100 {
				found = appendUnique(found, t)
			}
		})
		if len(found) > 0 {
			return capAmenities(found), true
		}
	}
	return nil, false
}

func amenitiesFromScripts(p *page) ([]string, bool) {
	var found []string
	for _, script := range p.scripts {
		for _, re := range amenityPatterns {
			for _, m := range re.FindAllStringSubmatch(script, -1) {
				if len([]rune(m[1])) > 2 {
					found = appendUnique(found, m[1])
				}
			}
		}
	}
	return capAmenities(found), len(found) > 0
}

var amenityStrategies = []Strategy[[]string]{
	amenitiesFromSelectors,
	amenitiesFromScripts,
}

var (
	latitudePattern  = mustCompile(`"latitude":\s*(-?[\d.]+)`)
	longitudePattern = mustCompile(`"longitude":\s*(-?[\d.]+)`)
)

var latitudeStrategies = []Strategy[float64]{
	mapped(scriptPattern(latitudePattern, anyText), func(s string) (float64, bool) {
		v, ok := parseFloat(s)
		return v, ok && v >= -90 && v <= 90
	}),
}

var longitudeStrategies = []Strategy[float64]{
	mapped(scriptPattern(longitudePattern, anyText), func(s string) (float64, bool) {
		v, ok := parseFloat(s)
		return v, ok && v >= -180 && v <= 180
	}),
}

// extractProfile applies every field's strategy chain independently
func extractProfile(p *page) Profile {
	amenities, _ := firstOf(p, amenityStrategies)
	return Profile{
		Name:        ptr(p, nameStrategies),
		Address:     ptr(p, addressStrategies),
		City:        ptr(p, cityStrategies),
		Country:     ptr(p, countryStrategies),
		StarRating:  ptr(p, starStrategies),
		UserRating:  ptr(p, userRatingStrategies),
		RatingCount: ptr(p, ratingCountStrategies),
		Latitude:    ptr(p, latitudeStrategies),
		Longitude:   ptr(p, longitudeStrategies),
		Amenities:   amenities,
	}
}
