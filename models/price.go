package models

import (
	"time"

	"github.com/google/uuid"
)

// Extraction sources recorded on price rows.
const (
	SourceRoomBlocks  = "room_blocks"
	SourcePriceScan   = "price_scan"
	SourceTextPattern = "text_pattern"
	SourceApify       = "apify"
	SourceNone        = "none"
)

// PriceRecord is one extracted price observation for a hotel, date and
// room type. Price is in minor currency units (agorot). Price is nil
// exactly when IsAvailable is false. Records are append-only: a new
// scan writes new rows instead of updating old ones.
type PriceRecord struct {
	ID              int64     `json:"id" db:"id"`
	ScanID          uuid.UUID `json:"scan_id" db:"scan_id"`
	HotelID         int64     `json:"hotel_id" db:"hotel_id"`
	CheckInDate     string    `json:"check_in_date" db:"check_in_date"` // YYYY-MM-DD
	RoomType        RoomType  `json:"room_type" db:"room_type"`
	Price           *int64    `json:"price" db:"price"`
	Currency        string    `json:"currency" db:"currency"`
	IsAvailable     bool      `json:"is_available" db:"is_available"`
	Source          string    `json:"source" db:"source"`
	RoomDescription string    `json:"room_description" db:"room_description"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Unavailable builds the record shape used whenever a date/room-type
// could not be priced, preserving the price==nil <=> !available invariant.
func Unavailable(scanID uuid.UUID, hotelID int64, checkIn string, roomType RoomType, source string) PriceRecord {
	return PriceRecord{
		ScanID:      scanID,
		HotelID:     hotelID,
		CheckInDate: checkIn,
		RoomType:    roomType,
		Price:       nil,
		Currency:    DefaultCurrency,
		IsAvailable: false,
		Source:      source,
	}
}

// DefaultCurrency matches the booking site locale this engine targets.
const DefaultCurrency = "ILS"
