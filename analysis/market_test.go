package analysis

import (
	"testing"

	"hotelwatch/models"
)

func priced(hotelID, price int64) models.PriceRecord {
	return models.PriceRecord{
		HotelID:     hotelID,
		CheckInDate: "2026-09-01",
		RoomType:    models.RoomOnly,
		Price:       &price,
		IsAvailable: true,
	}
}

func unavailable(hotelID int64) models.PriceRecord {
	return models.PriceRecord{
		HotelID:     hotelID,
		CheckInDate: "2026-09-01",
		RoomType:    models.RoomOnly,
		IsAvailable: false,
	}
}

func TestAnalyzeMarketBasic(t *testing.T) {
	records := []models.PriceRecord{
		priced(1, 100),
		priced(2, 200),
		priced(3, 300),
		priced(4, 400),
	}

	a := AnalyzeMarket(records, 3)

	if a.CompetitorCount != 4 {
		t.Errorf("competitorCount = %d, want 4", a.CompetitorCount)
	}
	if a.MinPrice != 100 || a.MaxPrice != 400 {
		t.Errorf("min/max = %d/%d, want 100/400", a.MinPrice, a.MaxPrice)
	}
	if a.AveragePrice != 250 {
		t.Errorf("average = %d, want 250", a.AveragePrice)
	}
	// Upper median for even counts.
	if a.MedianPrice != 300 {
		t.Errorf("median = %d, want 300", a.MedianPrice)
	}
	if a.PriceRange != 300 {
		t.Errorf("range = %d, want 300", a.PriceRange)
	}
	if a.TargetPrice == nil || *a.TargetPrice != 300 {
		t.Fatalf("targetPrice = %v, want 300", a.TargetPrice)
	}
	if a.TargetPosition == nil || *a.TargetPosition != 3 {
		t.Fatalf("targetPosition = %v, want 3", a.TargetPosition)
	}
}

func TestAnalyzeMarketEmpty(t *testing.T) {
	a := AnalyzeMarket(nil, 1)

	if a.CompetitorCount != 0 || a.AveragePrice != 0 || a.MedianPrice != 0 {
		t.Errorf("empty input must yield zeroed stats: %+v", a)
	}
	if a.TargetPrice != nil || a.TargetPosition != nil {
		t.Errorf("empty input must yield nil target fields: %+v", a)
	}
}

func TestAnalyzeMarketFiltersNonPositive(t *testing.T) {
	zero := int64(0)
	records := []models.PriceRecord{
		priced(1, 100),
		{HotelID: 2, Price: &zero, IsAvailable: true},
		priced(3, 200),
		unavailable(4),
	}

	a := AnalyzeMarket(records, 1)

	if a.CompetitorCount != 2 {
		t.Errorf("competitorCount = %d, want 2", a.CompetitorCount)
	}
	if a.AveragePrice != 150 {
		t.Errorf("average = %d, want 150", a.AveragePrice)
	}
}

func TestAnalyzeMarketTargetAbsent(t *testing.T) {
	records := []models.PriceRecord{
		priced(1, 100),
		priced(2, 200),
		unavailable(9),
	}

	a := AnalyzeMarket(records, 9)

	if a.TargetPrice != nil || a.TargetPosition != nil {
		t.Errorf("absent target must yield nil fields: %+v", a)
	}
	if a.CompetitorCount != 2 {
		t.Errorf("competitorCount = %d, want 2", a.CompetitorCount)
	}
}

func TestAnalyzeMarketTiesAtTarget(t *testing.T) {
	records := []models.PriceRecord{
		priced(1, 100),
		priced(2, 300),
		priced(3, 300),
		priced(4, 500),
	}

	a := AnalyzeMarket(records, 2)

	// Only the strictly lower price counts against the target.
	if a.TargetPosition == nil || *a.TargetPosition != 2 {
		t.Fatalf("targetPosition = %v, want 2", a.TargetPosition)
	}
}

func TestAnalyzeMarketOrderingInvariants(t *testing.T) {
	records := []models.PriceRecord{
		priced(1, 420),
		priced(2, 130),
		priced(3, 275),
	}

	a := AnalyzeMarket(records, 1)

	if a.MinPrice > a.MedianPrice || a.MedianPrice > a.MaxPrice {
		t.Errorf("expected min <= median <= max, got %d/%d/%d", a.MinPrice, a.MedianPrice, a.MaxPrice)
	}
	if a.PriceRange < 0 {
		t.Errorf("range must be non-negative, got %d", a.PriceRange)
	}
}

func TestAnalyzeByDate(t *testing.T) {
	p1, p2 := int64(100), int64(200)
	records := []models.PriceRecord{
		{HotelID: 1, CheckInDate: "2026-09-01", RoomType: models.RoomOnly, Price: &p1, IsAvailable: true},
		{HotelID: 2, CheckInDate: "2026-09-01", RoomType: models.RoomOnly, Price: &p2, IsAvailable: true},
		{HotelID: 1, CheckInDate: "2026-09-02", RoomType: models.WithBreakfast, Price: &p1, IsAvailable: true},
	}

	byDate := AnalyzeByDate(records, 1)

	if len(byDate) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(byDate))
	}
	first := byDate["2026-09-01/room_only"]
	if first.CompetitorCount != 2 {
		t.Errorf("first group competitorCount = %d, want 2", first.CompetitorCount)
	}
	second := byDate["2026-09-02/with_breakfast"]
	if second.CompetitorCount != 1 {
		t.Errorf("second group competitorCount = %d, want 1", second.CompetitorCount)
	}
}

func TestAnalyzeMarketCarriesCurrency(t *testing.T) {
	usd := priced(1, 21800)
	usd.Currency = "USD"

	a := AnalyzeMarket([]models.PriceRecord{usd, priced(2, 30000)}, 1)
	if a.Currency != "USD" {
		t.Errorf("currency = %q, want USD", a.Currency)
	}

	// Records without a currency fall back to the default.
	a = AnalyzeMarket([]models.PriceRecord{priced(1, 100)}, 1)
	if a.Currency != models.DefaultCurrency {
		t.Errorf("currency = %q, want %s", a.Currency, models.DefaultCurrency)
	}
}
