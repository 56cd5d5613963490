package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hotelwatch/models"
)

// RoomOffer is one raw extraction hit: a room description, the price
// text as displayed, and whether a breakfast indicator sat next to it.
type RoomOffer struct {
	Description string
	PriceText   string
	Breakfast   bool
}

// Strategy attempts one extraction heuristic against a rendered page.
// Strategies never fail the page as a whole; a broken element is
// skipped and the rest still counts.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document) []RoomOffer
}

// Strategies is the fixed priority chain. The first strategy that
// yields anything wins; later ones are not consulted.
func Strategies() []Strategy {
	return []Strategy{
		roomBlocksStrategy{},
		priceScanStrategy{},
		textPatternStrategy{},
	}
}

// RunStrategies walks the chain and returns the first non-empty
// result along with the source identifier of the strategy that
// produced it.
func RunStrategies(doc *goquery.Document) ([]RoomOffer, string) {
	for _, s := range Strategies() {
		if offers := s.Extract(doc); len(offers) > 0 {
			return offers, s.Name()
		}
	}
	return nil, ""
}

// roomBlocksStrategy reads the structured room-listing table: one row
// per offered rate, with a room name cell and a price cell. Most
// precise, breaks whenever the upstream markup shifts.
type roomBlocksStrategy struct{}

func (roomBlocksStrategy) Name() string { return models.SourceRoomBlocks }

var roomRowSelectors = []string{
	"table.hprt-table tbody tr",
	"[data-testid='property-section--content'] [data-testid*='room-row']",
	".room-listing .room-row",
}

var roomNameSelectors = []string{
	".hprt-roomtype-icon-link",
	"[data-testid='room-name']",
	".room-name",
	"span.roomtype",
}

var roomPriceSelectors = []string{
	".prco-valign-middle-helper",
	"[data-testid='price-and-discounted-price']",
	".bui-price-display__value",
	".room-price",
}

func (roomBlocksStrategy) Extract(doc *goquery.Document) []RoomOffer {
	var offers []RoomOffer

	for _, rowSel := range roomRowSelectors {
		doc.Find(rowSel).Each(func(_ int, row *goquery.Selection) {
			name := firstText(row, roomNameSelectors)
			price := firstText(row, roomPriceSelectors)
			if price == "" {
				return
			}

			offers = append(offers, RoomOffer{
				Description: name,
				PriceText:   price,
				Breakfast:   hasBreakfastBadge(row),
			})
		})
		if len(offers) > 0 {
			break
		}
	}
	return offers
}

// priceScanStrategy ignores row structure and harvests anything that
// looks like a displayed price, pairing each hit positionally with a
// breakfast badge when one is in scope. Lower precision than the
// structured table.
type priceScanStrategy struct{}

func (priceScanStrategy) Name() string { return models.SourcePriceScan }

var looseSelectorGroups = []string{
	"[data-testid='price-and-discounted-price']",
	"span[class*='price'][class*='value']",
	".bui-price-display__value",
	"[class*='prco-text']",
}

func (priceScanStrategy) Extract(doc *goquery.Document) []RoomOffer {
	var offers []RoomOffer
	seen := make(map[string]bool)

	for _, sel := range looseSelectorGroups {
		doc.Find(sel).Each(func(_ int, el *goquery.Selection) {
			text := strings.TrimSpace(el.Text())
			if text == "" || seen[text] {
				return
			}
			seen[text] = true

			// The nearest enclosing block usually carries the rate
			// plan wording, if any.
			desc := strings.TrimSpace(el.Closest("tr, li, div[class*='room']").Text())
			if len(desc) > 300 {
				desc = desc[:300]
			}

			offers = append(offers, RoomOffer{
				Description: desc,
				PriceText:   text,
				Breakfast:   hasBreakfastBadge(el.Closest("tr, li, div[class*='room']")),
			})
		})
		if len(offers) > 0 {
			break
		}
	}
	return offers
}

// textPatternStrategy is the last resort: scan the page's visible
// text for currency-prefixed numbers. It cannot tell room types
// apart, so everything it finds is an undifferentiated candidate.
type textPatternStrategy struct{}

func (textPatternStrategy) Name() string { return models.SourceTextPattern }

// Up to this many distinct matches are kept per page.
const maxTextMatches = 3

var currencyPattern = regexp.MustCompile(`(?:₪|ILS|NIS|\$|€|US\$)\s?((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)`)

func (textPatternStrategy) Extract(doc *goquery.Document) []RoomOffer {
	text := doc.Find("body").Text()

	var offers []RoomOffer
	seen := make(map[string]bool)
	for _, m := range currencyPattern.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true

		offers = append(offers, RoomOffer{PriceText: m[1]})
		if len(offers) == maxTextMatches {
			break
		}
	}
	return offers
}

var breakfastBadgeSelectors = []string{
	"[data-testid='mealplan']",
	".mealplan",
	"[class*='breakfast']",
	".bui-list__description",
}

func hasBreakfastBadge(scope *goquery.Selection) bool {
	if scope == nil || scope.Length() == 0 {
		return false
	}
	for _, sel := range breakfastBadgeSelectors {
		found := false
		scope.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if ClassifyRoomType(el.Text()) == models.WithBreakfast {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

func firstText(scope *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if el := scope.Find(sel).First(); el.Length() > 0 {
			if text := strings.TrimSpace(el.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}
