package models

import (
	"time"

	"github.com/google/uuid"
)

type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// Terminal reports whether the status is final.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// Scan is one monitoring run over a hotel set and date range.
// Mutated only by the scan coordinator; read-only everywhere else.
type Scan struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	TargetHotelID   int64      `json:"target_hotel_id" db:"target_hotel_id"`
	StartDate       time.Time  `json:"start_date" db:"start_date"`
	DaysForward     int        `json:"days_forward" db:"days_forward"`
	Status          ScanStatus `json:"status" db:"status"`
	TotalHotels     int        `json:"total_hotels" db:"total_hotels"`
	CompletedHotels int        `json:"completed_hotels" db:"completed_hotels"`
	ErrorMessage    string     `json:"error_message" db:"error_message"`
	StartedAt       *time.Time `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// ScrapeTask is one (hotel, date) unit of extraction work.
type ScrapeTask struct {
	ScanID       uuid.UUID
	HotelID      int64
	HotelURL     string
	CheckInDate  time.Time
	CheckOutDate time.Time
	RoomTypes    []RoomType
}

// DateLayout is the wire format for check-in dates.
const DateLayout = "2006-01-02"

// CheckIn returns the task's check-in date as YYYY-MM-DD.
func (t ScrapeTask) CheckIn() string {
	return t.CheckInDate.Format(DateLayout)
}

// CheckOut returns the task's check-out date as YYYY-MM-DD.
func (t ScrapeTask) CheckOut() string {
	return t.CheckOutDate.Format(DateLayout)
}
