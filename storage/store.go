package storage

import (
	"context"

	"github.com/google/uuid"

	"hotelwatch/models"
)

// Store is the persistence surface the scan coordinator writes
// through. Implementations must tolerate concurrent writers for
// different scan ids; rows for one scan are only ever written by its
// own coordinator goroutine.
type Store interface {
	CreateScan(ctx context.Context, scan *models.Scan) error
	GetScan(ctx context.Context, id uuid.UUID) (*models.Scan, error)
	LatestScan(ctx context.Context) (*models.Scan, error)
	UpdateScanProgress(ctx context.Context, id uuid.UUID, completedHotels int) error
	UpdateScanStatus(ctx context.Context, id uuid.UUID, status models.ScanStatus, errMsg string) error

	SavePrices(ctx context.Context, records []models.PriceRecord) error
	PricesByDate(ctx context.Context, scanID uuid.UUID, checkIn string, roomType models.RoomType) ([]models.PriceRecord, error)
	PricesByScan(ctx context.Context, scanID uuid.UUID) ([]models.PriceRecord, error)

	Log(ctx context.Context, entry models.ScanLog) error

	Close() error
}
