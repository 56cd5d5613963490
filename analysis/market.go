package analysis

import (
	"math"
	"sort"

	"hotelwatch/models"
)

// MarketAnalysis is the comparative picture for one date and room
// type across all scanned hotels. Derived on demand, never persisted.
type MarketAnalysis struct {
	AveragePrice    int64  `json:"average_price"`
	MinPrice        int64  `json:"min_price"`
	MaxPrice        int64  `json:"max_price"`
	MedianPrice     int64  `json:"median_price"`
	PriceRange      int64  `json:"price_range"`
	CompetitorCount int    `json:"competitor_count"`
	Currency        string `json:"currency"`
	TargetPrice     *int64 `json:"target_price"`
	TargetPosition  *int   `json:"target_position"` // 1-based rank by ascending price
}

// AnalyzeMarket computes market statistics from price records sharing
// one date and room type. Pure function. Records without a strictly
// positive price are ignored; an empty filtered set yields zeroed
// stats with nil target fields.
//
// The median is sorted[count/2], the upper median for even counts.
// That is a deliberate tie-break, kept for continuity with existing
// dashboards, not an interpolated median.
func AnalyzeMarket(records []models.PriceRecord, targetHotelID int64) MarketAnalysis {
	var prices []int64
	var targetPrice *int64
	currency := models.DefaultCurrency

	for _, r := range records {
		if r.Price == nil || *r.Price <= 0 {
			continue
		}
		if len(prices) == 0 && r.Currency != "" {
			currency = r.Currency
		}
		prices = append(prices, *r.Price)
		if r.HotelID == targetHotelID && targetPrice == nil {
			p := *r.Price
			targetPrice = &p
		}
	}

	if len(prices) == 0 {
		return MarketAnalysis{}
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })

	var sum int64
	for _, p := range prices {
		sum += p
	}

	analysis := MarketAnalysis{
		AveragePrice:    int64(math.Round(float64(sum) / float64(len(prices)))),
		MinPrice:        prices[0],
		MaxPrice:        prices[len(prices)-1],
		MedianPrice:     prices[len(prices)/2],
		PriceRange:      prices[len(prices)-1] - prices[0],
		CompetitorCount: len(prices),
		Currency:        currency,
		TargetPrice:     targetPrice,
	}

	if targetPrice != nil {
		// Rank counts only strictly lower prices, so ties at the
		// target price do not push it down.
		position := 1
		for _, p := range prices {
			if p < *targetPrice {
				position++
			}
		}
		analysis.TargetPosition = &position
	}

	return analysis
}

// AnalyzeByDate groups a scan's records by (date, room type) and
// analyzes each group. Keys are "YYYY-MM-DD/room_type".
func AnalyzeByDate(records []models.PriceRecord, targetHotelID int64) map[string]MarketAnalysis {
	groups := make(map[string][]models.PriceRecord)
	for _, r := range records {
		key := r.CheckInDate + "/" + string(r.RoomType)
		groups[key] = append(groups[key], r)
	}

	out := make(map[string]MarketAnalysis, len(groups))
	for key, group := range groups {
		out[key] = AnalyzeMarket(group, targetHotelID)
	}
	return out
}
