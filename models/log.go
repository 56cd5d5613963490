package models

import (
	"time"

	"github.com/google/uuid"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ScanLog is one log line attached to a scan, persisted for the
// monitoring view.
type ScanLog struct {
	ID        int64      `json:"id" db:"id"`
	ScanID    *uuid.UUID `json:"scan_id" db:"scan_id"`
	Timestamp time.Time  `json:"timestamp" db:"timestamp"`
	Level     LogLevel   `json:"level" db:"level"`
	Message   string     `json:"message" db:"message"`
	HotelID   int64      `json:"hotel_id" db:"hotel_id"`
}
