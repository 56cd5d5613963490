package scraper

import (
	"encoding/json"
	"fmt"
	"strconv"

	"hotelwatch/models"
)

// BookingAdapter maps our scrape tasks onto the public booking-site
// actor and its result items back into room offers.
type BookingAdapter struct {
	actorID string
}

func NewBookingAdapter(actorID string) *BookingAdapter {
	return &BookingAdapter{actorID: actorID}
}

func (a *BookingAdapter) ActorID() string { return a.actorID }

func (a *BookingAdapter) BuildInput(task models.ScrapeTask) map[string]interface{} {
	return map[string]interface{}{
		"startUrls": []map[string]string{
			{"url": task.HotelURL},
		},
		"checkIn":  task.CheckIn(),
		"checkOut": task.CheckOut(),
		"currency": models.DefaultCurrency,
		"adults":   2,
		"children": 0,
		"rooms":    1,
		"maxItems": 1,
	}
}

type bookingItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Rooms    []struct {
		RoomType string `json:"roomType"`
		Options  []struct {
			Price    float64 `json:"price"`
			MealPlan string  `json:"mealPlan"`
		} `json:"options"`
	} `json:"rooms"`
}

func (a *BookingAdapter) ParseItem(data json.RawMessage) ([]RoomOffer, error) {
	var item bookingItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to parse actor item: %w", err)
	}

	var offers []RoomOffer
	for _, room := range item.Rooms {
		for _, opt := range room.Options {
			if opt.Price <= 0 {
				continue
			}
			offers = append(offers, RoomOffer{
				Description: room.RoomType + " " + opt.MealPlan,
				PriceText:   strconv.FormatFloat(opt.Price, 'f', -1, 64),
				Breakfast:   ClassifyRoomType(opt.MealPlan) == models.WithBreakfast,
			})
		}
	}

	// Some actor versions only expose a single headline price.
	if len(offers) == 0 && item.Price > 0 {
		offers = append(offers, RoomOffer{
			Description: item.Name,
			PriceText:   strconv.FormatFloat(item.Price, 'f', -1, 64),
		})
	}

	return offers, nil
}
