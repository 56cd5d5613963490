package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"hotelwatch/models"
)

type stubStore struct {
	latest       *models.Scan
	latestCalls  int
	dateQueries  []string
	queriedTypes []models.RoomType
}

func (s *stubStore) CreateScan(ctx context.Context, scan *models.Scan) error { return nil }
func (s *stubStore) GetScan(ctx context.Context, id uuid.UUID) (*models.Scan, error) {
	return nil, nil
}

func (s *stubStore) LatestScan(ctx context.Context) (*models.Scan, error) {
	s.latestCalls++
	return s.latest, nil
}

func (s *stubStore) UpdateScanProgress(ctx context.Context, id uuid.UUID, completed int) error {
	return nil
}

func (s *stubStore) UpdateScanStatus(ctx context.Context, id uuid.UUID, status models.ScanStatus, errMsg string) error {
	return nil
}

func (s *stubStore) SavePrices(ctx context.Context, records []models.PriceRecord) error { return nil }

func (s *stubStore) PricesByDate(ctx context.Context, scanID uuid.UUID, checkIn string, roomType models.RoomType) ([]models.PriceRecord, error) {
	s.dateQueries = append(s.dateQueries, checkIn)
	s.queriedTypes = append(s.queriedTypes, roomType)
	p1, p2 := int64(110000), int64(135000)
	return []models.PriceRecord{
		{HotelID: 1, CheckInDate: checkIn, RoomType: roomType, Price: &p1, Currency: models.DefaultCurrency, IsAvailable: true},
		{HotelID: 2, CheckInDate: checkIn, RoomType: roomType, Price: &p2, Currency: models.DefaultCurrency, IsAvailable: true},
	}, nil
}

func (s *stubStore) PricesByScan(ctx context.Context, scanID uuid.UUID) ([]models.PriceRecord, error) {
	return nil, nil
}

func (s *stubStore) Log(ctx context.Context, entry models.ScanLog) error { return nil }
func (s *stubStore) Close() error                                        { return nil }

func TestPrintAnalysisReadsLatestScan(t *testing.T) {
	store := &stubStore{latest: &models.Scan{
		ID:        uuid.New(),
		Status:    models.ScanStatusCompleted,
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}}

	if err := printAnalysis(context.Background(), store, "2026-09-01", 1); err != nil {
		t.Fatalf("printAnalysis: %v", err)
	}
	if store.latestCalls != 1 {
		t.Errorf("LatestScan called %d times, want 1", store.latestCalls)
	}
	// One price query per room type, all for the requested date.
	if len(store.dateQueries) != 2 {
		t.Fatalf("PricesByDate called %d times, want 2", len(store.dateQueries))
	}
	for _, d := range store.dateQueries {
		if d != "2026-09-01" {
			t.Errorf("queried date %q, want 2026-09-01", d)
		}
	}
}

func TestPrintAnalysisRejectsBadDate(t *testing.T) {
	store := &stubStore{}
	if err := printAnalysis(context.Background(), store, "tomorrow", 1); err == nil {
		t.Error("malformed dates must be rejected")
	}
	if store.latestCalls != 0 {
		t.Error("store must not be queried for a malformed date")
	}
}

func TestPrintAnalysisRequiresAScan(t *testing.T) {
	store := &stubStore{}
	if err := printAnalysis(context.Background(), store, "2026-09-01", 1); err == nil {
		t.Error("expected an error when no scan has run yet")
	}
}

func TestMaskConnectionString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://user:secret@db:5432/prices", "postgres://user:****@db:5432/prices"},
		{"postgres://db:5432/prices", "postgres://db:5432/prices"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := maskConnectionString(tt.in); got != tt.want {
			t.Errorf("maskConnectionString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
