package models

// Hotel categories
const (
	CategoryTarget     = "target"
	CategoryCompetitor = "competitor"
)

// Hotel is one monitored property on the booking site.
type Hotel struct {
	ID         int64  `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	BookingURL string `json:"booking_url" yaml:"booking_url"`
	Location   string `json:"location" yaml:"location"`
	Category   string `json:"category" yaml:"category"` // target, competitor
	IsActive   bool   `json:"is_active" yaml:"is_active"`
}

type RoomType string

const (
	RoomOnly      RoomType = "room_only"
	WithBreakfast RoomType = "with_breakfast"
)

// ValidRoomType reports whether t is one of the known room types.
func ValidRoomType(t RoomType) bool {
	return t == RoomOnly || t == WithBreakfast
}
