package extractor

import (
	"strings"
	"time"

	"sjsage522/hotelpricesync/internal/pricing"
	"sjsage522/hotelpricesync/logger"

	"github.com/PuerkitoBio/goquery"
)

const roomLabelSelector = "span.hprt-roomtype-icon-link"

var rowBoardSelectors = []string{
	`[data-testid="board-type"]`,
	`.hprt-conditions li`,
	`.bui-list__description`,
}

var mealTerms = []string{"breakfast", "half board", "full board", "all inclusive", "all-inclusive", "room only"}

// roomLabelNear finds the room label associated with a pricing table cell:
// first in following siblings, then in the closest container, then in the
// preceding rows of the same table, where a multi-row room block keeps its
// label on the first row.
func roomLabelNear(s *goquery.Selection) string {
	for sib := s.Next(); sib.Length() > 0; sib = sib.Next() {
		if sib.Is(roomLabelSelector) {
			return text(sib)
		}
		if found := sib.Find(roomLabelSelector).First(); found.Length() > 0 {
			return text(found)
		}
	}

	if container := s.Parent().Closest("tr, td, div"); container.Length() > 0 {
		if found := container.Find(roomLabelSelector).First(); found.Length() > 0 {
			return text(found)
		}
	}

	for row := s.Closest("tr"); row.Length() > 0; row = row.Prev() {
		if found := row.Find(roomLabelSelector).First(); found.Length() > 0 {
			return text(found)
		}
	}
	return ""
}

func boardInRow(s *goquery.Selection) *string {
	row := s.Closest("tr")
	if row.Length() == 0 {
		return nil
	}
	for _, sel := range rowBoardSelectors {
		var board string
		row.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			t := text(el)
			lower := strings.ToLower(t)
			for _, term := range mealTerms {
				if strings.Contains(lower, term) && len([]rune(t)) < 50 {
					board = t
					return false
				}
			}
			return true
		})
		if board != "" {
			return &board
		}
	}
	return nil
}

// roomsFromPricingTable reads every element carrying a rounded price
// attribute and pairs it with its nearest room label
func roomsFromPricingTable(p *page) ([]RoomCandidate, bool) {
	var out []RoomCandidate
	p.doc.Find("[data-hotel-rounded-price]").Each(func(_ int, s *goquery.Selection) {
		attr, _ := s.Attr("data-hotel-rounded-price")
		price, ok := parseFloat(attr)
		if !ok {
			price, ok = pricing.ParseText(attr)
		}
		label := roomLabelNear(s)
		if !ok || label == "" {
			return
		}

		currency := pricing.DetectCurrency(text(s))
		if code, exists := s.Attr("data-hotel-currency"); exists && len(code) == 3 {
			currency = strings.ToUpper(code)
		}
		out = append(out, RoomCandidate{
			Label:     label,
			Price:     &price,
			BoardType: boardInRow(s),
			Currency:  currency,
		})
	})
	return out, len(out) > 0
}

var jsonRoomPairPatterns = mustCompile(
	`"roomType":\s*"([^"]+)"[^}]*"price":\s*([\d.]+)`,
	`"type":\s*"([^"]+)"[^}]*"amount":\s*([\d.]+)`,
	`"name":\s*"([^"]+)"[^}]*"price":\s*([\d.]+)`,
	`"room_type":\s*"([^"]+)"[^}]*"price":\s*([\d.]+)`,
	`"roomName":\s*"([^"]+)"[^}]*"price":\s*([\d.]+)`,
	`"room_name":\s*"([^"]+)"[^}]*"price":\s*([\d.]+)`,
	`"title":\s*"([^"]+)"[^}]*"price":\s*([\d.]+)`,
)

var (
	jsonRoomArrayPatterns = mustCompile(
		`"rooms":\s*\[([^\]]+)\]`,
		`"roomTypes":\s*\[([^\]]+)\]`,
		`"accommodations":\s*\[([^\]]+)\]`,
	)
	jsonObject    = mustCompile(`\{[^}]+\}`)[0]
	jsonNameField = mustCompile(`"name":\s*"([^"]+)"`)[0]
	jsonPrice     = mustCompile(`"price":\s*([\d.]+)`)[0]
)

func jsonCandidate(label, rawPrice string) (RoomCandidate, bool) {
	price, ok := parseFloat(rawPrice)
	if !ok || !pricing.Sane(price) {
		return RoomCandidate{}, false
	}
	return RoomCandidate{Label: label, Price: &price, Currency: pricing.DefaultCurrency}, true
}

// roomsFromScripts reads room/price pairs from embedded structured data
func roomsFromScripts(p *page) ([]RoomCandidate, bool) {
	var out []RoomCandidate
	for _, script := range p.scripts {
		for _, re := range jsonRoomPairPatterns {
			for _, m := range re.FindAllStringSubmatch(script, -1) {
				if c, ok := jsonCandidate(m[1], m[2]); ok {
					out = append(out, c)
				}
			}
		}
		for _, re := range jsonRoomArrayPatterns {
			m := re.FindStringSubmatch(script)
			if m == nil {
				continue
			}
			for _, obj := range jsonObject.FindAllString(m[1], -1) {
				name := jsonNameField.FindStringSubmatch(obj)
				price := jsonPrice.FindStringSubmatch(obj)
				if name == nil || price == nil {
					continue
				}
				if c, ok := jsonCandidate(name[1], price[1]); ok {
					out = append(out, c)
				}
			}
		}
	}
	return out, len(out) > 0
}

var roomCardSelectors = []string{
	`[data-testid="room-card"]`,
	`.room-card`,
	`.room-item`,
	`.room-option`,
	`.hp__room`,
	`.room-block`,
	`.room-card-container`,
	`.room-type-card`,
	`[data-testid="property-card"]`,
}

var cardLabelSelectors = []string{
	`[data-testid="room-type"]`,
	`.room-type`,
	`.room-name`,
	`.room-title`,
	`h3`,
	`h4`,
	`.title`,
	`[class*="room"]`,
}

var cardPriceSelectors = []string{
	`[data-testid="price"]`,
	`.price`,
	`.rate`,
	`.amount`,
	`[class*="price"]`,
}

var cardBoardSelectors = []string{
	`[data-testid="board-type"]`,
	`.board-type`,
	`.meal-plan`,
	`.breakfast`,
	`[class*="board"]`,
	`[class*="meal"]`,
}

var roomKeywords = []string{
	"room", "suite", "apartment", "studio", "villa", "chalet",
	"single", "double", "twin", "triple", "quad", "family",
	"deluxe", "standard", "superior", "executive", "presidential",
}

func looksLikeRoom(label string) bool {
	lower := strings.ToLower(label)
	for _, kw := range roomKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func cardLabel(card *goquery.Selection) string {
	for _, sel := range cardLabelSelectors {
		t := text(card.Find(sel).First())
		if t != "" && len([]rune(t)) < 100 && pricing.ValidRoomType(t) && looksLikeRoom(t) {
			return t
		}
	}
	return ""
}

func cardPrice(card *goquery.Selection) (*float64, string) {
	for _, sel := range cardPriceSelectors {
		t := text(card.Find(sel).First())
		if v, ok := pricing.ParseText(t); ok && v > 0 {
			return &v, t
		}
	}
	return nil, ""
}

func cardBoard(card *goquery.Selection) *string {
	for _, sel := range cardBoardSelectors {
		if t := text(card.Find(sel).First()); t != "" && len([]rune(t)) < 50 {
			return &t
		}
	}
	return nil
}

// roomsFromCards reads room cards; the first card selector yielding any
// candidate wins
func roomsFromCards(p *page) ([]RoomCandidate, bool) {
	for _, sel := range roomCardSelectors {
		var out []RoomCandidate
		p.doc.Find(sel).Each(func(_ int, card *goquery.Selection) {
			label := cardLabel(card)
			price, priceText := cardPrice(card)
			if label == "" && price == nil {
				return
			}
			out = append(out, RoomCandidate{
				Label:     label,
				Price:     price,
				BoardType: cardBoard(card),
				Currency:  pricing.DetectCurrency(priceText),
			})
		})
		if len(out) > 0 {
			return out, true
		}
	}
	return nil, false
}

// roomStrategies are ordered by precision; the pricing table wins over
// embedded data and cards
var roomStrategies = []Strategy[[]RoomCandidate]{
	roomsFromPricingTable,
	roomsFromScripts,
	roomsFromCards,
}

// promote validates candidates and turns the survivors into quotes.
// Candidates with a noise label, no label, no price or an implausible price
// are dropped. A room type yields one quote per stay window: when a table
// lists several rates for the same room, the lowest rate and its board
// type are kept, in first-seen order.
func promote(candidates []RoomCandidate, checkIn, checkOut string, scrapedAt time.Time, log *logger.Logger) []Quote {
	index := make(map[string]int)
	quotes := make([]Quote, 0, len(candidates))

	for _, c := range candidates {
		label := strings.TrimSpace(c.Label)
		switch {
		case !pricing.ValidRoomType(label):
			log.Debug().Str("room_type", label).Msg("Dropping room with invalid label")
			continue
		case c.Price == nil:
			log.Debug().Str("room_type", label).Msg("Dropping room without price")
			continue
		case !pricing.Sane(*c.Price):
			log.Debug().Str("room_type", label).Float64("price", *c.Price).Msg("Dropping room with implausible price")
			continue
		}

		currency := c.Currency
		if currency == "" {
			currency = pricing.DefaultCurrency
		}
		q := Quote{
			CheckIn:   checkIn,
			CheckOut:  checkOut,
			RoomType:  label,
			BoardType: c.BoardType,
			Price:     *c.Price,
			Currency:  currency,
			Source:    Source,
			ScrapedAt: scrapedAt,
		}

		if i, ok := index[label]; ok {
			if q.Price < quotes[i].Price {
				quotes[i] = q
			}
			continue
		}
		index[label] = len(quotes)
		quotes = append(quotes, q)
	}
	return quotes
}
