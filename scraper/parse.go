package scraper

import (
	"math"
	"strconv"
	"strings"

	"hotelwatch/models"
)

// Breakfast markers seen on booking pages. Hebrew first because the
// monitored market is Israeli and pages often render localized.
var breakfastKeywords = []string{
	"ארוחת בוקר",
	"כולל ארוחת",
	"breakfast",
	"bed & breakfast",
	"bed and breakfast",
	"half board",
	"full board",
}

// ParsePrice normalizes a displayed price string ("₪ 1,234", "$218",
// "1,350.00") to an integer amount. Returns false when the text holds
// no usable non-negative number.
func ParsePrice(text string) (int64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	// Commas are thousands separators on every upstream page seen so
	// far. A trailing ".00" style decimal part is kept and rounded.
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f < 0 {
		return 0, false
	}
	return int64(math.Round(f)), true
}

// ClassifyRoomType maps a room description to a rate plan. Any
// breakfast keyword, in any casing, wins; everything else is a bare
// room rate.
func ClassifyRoomType(description string) models.RoomType {
	lower := strings.ToLower(description)
	for _, kw := range breakfastKeywords {
		if strings.Contains(lower, kw) {
			return models.WithBreakfast
		}
	}
	return models.RoomOnly
}
