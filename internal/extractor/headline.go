package extractor

import (
	"strings"

	"sjsage522/hotelpricesync/internal/pricing"

	"github.com/PuerkitoBio/goquery"
)

// priceMatch is a parsed price with the text it was read from, kept for
// currency detection
type priceMatch struct {
	value float64
	text  string
}

var headlinePriceSelectors = []string{
	`[data-testid="price-and-discounted-price"]`,
	`.hp__hotel-rate`,
	`.hp__hotel-price`,
	`[data-testid="price"]`,
	`.hotel-price`,
	`.room-price`,
	`.price`,
	`.rate`,
	`[class*="price"]`,
}

var currencyTextPatterns = mustCompile(
	`€\s*[\d,]+(?:\.\d+)?`,
	`\d+\s*€`,
	`\$\s*[\d,]+(?:\.\d+)?`,
	`\d+\s*\$`,
	`£\s*[\d,]+(?:\.\d+)?`,
	`\d+\s*£`,
)

func saneTextPrice(t string) (priceMatch, bool) {
	v, ok := pricing.ParseText(t)
	if !ok || !pricing.Sane(v) {
		return priceMatch{}, false
	}
	return priceMatch{value: v, text: t}, true
}

func priceFromSelectors(p *page) (priceMatch, bool) {
	for _, sel := range headlinePriceSelectors {
		var found priceMatch
		var ok bool
		p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found, ok = saneTextPrice(text(s))
			return !ok
		})
		if ok {
			return found, true
		}
	}
	return priceMatch{}, false
}

// leafTexts returns the text of body elements that have no element children
func leafTexts(p *page) []string {
	var out []string
	p.doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "script" || goquery.NodeName(s) == "style" {
			return
		}
		if s.Children().Length() == 0 {
			if t := text(s); t != "" {
				out = append(out, t)
			}
		}
	})
	return out
}

func priceFromCurrencyText(p *page) (priceMatch, bool) {
	leaves := leafTexts(p)
	for _, re := range currencyTextPatterns {
		for _, t := range leaves {
			m := re.FindString(t)
			if m == "" {
				continue
			}
			if found, ok := saneTextPrice(m); ok {
				found.text = t
				return found, true
			}
		}
	}
	return priceMatch{}, false
}

var headlinePriceStrategies = []Strategy[priceMatch]{
	priceFromSelectors,
	priceFromCurrencyText,
}

var headlineRoomSelectors = []string{
	`[data-testid="room-type"]`,
	`.hp__room-type`,
	`.hprt-roomtype-icon-link`,
	`.room-type`,
	`.room-name`,
	`[class*="room"]`,
}

var titleRoomKeywords = []struct {
	keyword string
	label   string
}{
	{"single", "Single Room"},
	{"double", "Double Room"},
	{"twin", "Twin Room"},
	{"suite", "Suite"},
}

func roomFromTitle(p *page) (string, bool) {
	title := strings.ToLower(text(p.doc.Find("title").First()))
	for _, k := range titleRoomKeywords {
		if strings.Contains(title, k.keyword) {
			return k.label, true
		}
	}
	return "", false
}

var headlineRoomStrategies = []Strategy[string]{
	selectorText(headlineRoomSelectors, func(s string) bool {
		return len([]rune(s)) < 100 && pricing.ValidRoomType(s)
	}),
	roomFromTitle,
}

var boardSelectors = []string{
	`[data-testid="board-type"]`,
	`.hp__board-type`,
	`.board-type`,
	`.meal-plan`,
	`.breakfast-info`,
	`.meal-info`,
	`[class*="board"]`,
}

var boardPatterns = mustCompile(
	`"breakfast":"([^"]+)"`,
	`"board_type":\s*"([^"]+)"`,
	`"meal_plan":\s*"([^"]+)"`,
	`"mealplan":\s*"([^"]+)"`,
)

var boardKeywords = []string{"breakfast", "half board", "full board", "all inclusive", "meal", "board", "dining"}

func boardFromKeywords(p *page) (string, bool) {
	leaves := leafTexts(p)
	for _, kw := range boardKeywords {
		for _, t := range leaves {
			if len([]rune(t)) < 100 && strings.Contains(strings.ToLower(t), kw) {
				return t, true
			}
		}
	}
	return "", false
}

var boardStrategies = []Strategy[string]{
	selectorText(boardSelectors, shorterThan(50)),
	scriptPattern(boardPatterns, longerThan(3)),
	boardFromKeywords,
}

// extractHeadline returns the page's single headline quote, or nil when no
// sane price is found
func extractHeadline(p *page, checkIn, checkOut string) (*Quote, bool) {
	match, ok := firstOf(p, headlinePriceStrategies)
	if !ok {
		return nil, false
	}
	room, _ := firstOf(p, headlineRoomStrategies)
	return &Quote{
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		RoomType:  room,
		BoardType: ptr(p, boardStrategies),
		Price:     match.value,
		Currency:  pricing.DetectCurrency(match.text),
		Source:    Source,
	}, true
}

