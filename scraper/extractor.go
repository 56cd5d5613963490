package scraper

import (
	"context"

	"hotelwatch/models"
)

// Extractor prices one hotel+date task. Implementations must convert
// every per-task failure into unavailable rows rather than letting a
// single bad date abort a multi-day scan; a returned error means the
// extractor itself is broken for this task, not that no rooms exist.
type Extractor interface {
	Extract(ctx context.Context, task models.ScrapeTask) ([]models.PriceRecord, error)
}

// SessionExtractor is an Extractor that holds an external session,
// like a browser process. The scan pipeline that uses one must call
// Close when it finishes, on every exit path, or the session leaks.
type SessionExtractor interface {
	Extractor
	Close()
}

// OffersToRecords turns raw strategy output into one record per
// requested room type. The first offer to fill a room type wins;
// anything the offers did not cover is recorded as unavailable so a
// task always yields exactly len(task.RoomTypes) rows.
func OffersToRecords(task models.ScrapeTask, offers []RoomOffer, source string) []models.PriceRecord {
	filled := make(map[models.RoomType]models.PriceRecord)

	for _, offer := range offers {
		amount, ok := ParsePrice(offer.PriceText)
		if !ok {
			// Unparseable text is "no price here", not an error.
			continue
		}

		roomType := ClassifyRoomType(offer.Description)
		if offer.Breakfast {
			roomType = models.WithBreakfast
		}
		if !requested(task.RoomTypes, roomType) {
			continue
		}
		if _, ok := filled[roomType]; ok {
			continue
		}

		minor := amount * 100
		filled[roomType] = models.PriceRecord{
			ScanID:          task.ScanID,
			HotelID:         task.HotelID,
			CheckInDate:     task.CheckIn(),
			RoomType:        roomType,
			Price:           &minor,
			Currency:        models.DefaultCurrency,
			IsAvailable:     true,
			Source:          source,
			RoomDescription: offer.Description,
		}
	}

	records := make([]models.PriceRecord, 0, len(task.RoomTypes))
	for _, rt := range task.RoomTypes {
		if rec, ok := filled[rt]; ok {
			records = append(records, rec)
			continue
		}
		records = append(records, models.Unavailable(task.ScanID, task.HotelID, task.CheckIn(), rt, source))
	}
	return records
}

// UnavailableRecords fills every requested room type for a task with
// an unavailable row. Used when extraction failed outright.
func UnavailableRecords(task models.ScrapeTask, source string) []models.PriceRecord {
	records := make([]models.PriceRecord, 0, len(task.RoomTypes))
	for _, rt := range task.RoomTypes {
		records = append(records, models.Unavailable(task.ScanID, task.HotelID, task.CheckIn(), rt, source))
	}
	return records
}

func requested(set []models.RoomType, rt models.RoomType) bool {
	for _, r := range set {
		if r == rt {
			return true
		}
	}
	return false
}
