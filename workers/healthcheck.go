package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"hotelwatch/models"
	"hotelwatch/storage"
)

// HealthChecker verifies that configured hotel listing URLs still
// resolve before a scan burns an hour scraping dead pages. Findings
// go to the scan log with no scan id.
type HealthChecker struct {
	client *http.Client
	store  storage.Store
	hotels []models.Hotel
}

func NewHealthChecker(client *http.Client, store storage.Store, hotels []models.Hotel) *HealthChecker {
	return &HealthChecker{client: client, store: store, hotels: hotels}
}

// Run checks every active hotel URL and returns the number of
// unreachable ones.
func (h *HealthChecker) Run(ctx context.Context) int {
	bad := 0
	for _, hotel := range h.hotels {
		if !hotel.IsActive {
			continue
		}
		if err := h.check(ctx, hotel.BookingURL); err != nil {
			bad++
			log.Printf("Healthcheck failed for %s: %v", hotel.Name, err)
			h.record(ctx, hotel.ID, fmt.Sprintf("hotel URL unreachable: %s: %v", hotel.BookingURL, err))
		}
	}
	return bad
}

func (h *HealthChecker) check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	// Booking pages answer HEAD with odd codes behind bot walls;
	// anything below 500 means the host is alive.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (h *HealthChecker) record(ctx context.Context, hotelID int64, msg string) {
	entry := models.ScanLog{
		Timestamp: time.Now(),
		Level:     models.LogLevelWarn,
		Message:   msg,
		HotelID:   hotelID,
	}
	if err := h.store.Log(ctx, entry); err != nil {
		log.Printf("Failed to persist healthcheck log: %v", err)
	}
}
