package scan

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"hotelwatch/config"
	"hotelwatch/models"
	"hotelwatch/scraper"
)

type fakeStore struct {
	mu            sync.Mutex
	scans         map[uuid.UUID]*models.Scan
	prices        []models.PriceRecord
	statusHistory []models.ScanStatus
	progress      []int
	saveErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{scans: make(map[uuid.UUID]*models.Scan)}
}

func (s *fakeStore) CreateScan(ctx context.Context, scan *models.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *scan
	s.scans[scan.ID] = &cp
	return nil
}

func (s *fakeStore) GetScan(ctx context.Context, id uuid.UUID) (*models.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scan, ok := s.scans[id]; ok {
		cp := *scan
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) LatestScan(ctx context.Context) (*models.Scan, error) { return nil, nil }

func (s *fakeStore) UpdateScanProgress(ctx context.Context, id uuid.UUID, completed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, completed)
	if scan, ok := s.scans[id]; ok {
		scan.CompletedHotels = completed
	}
	return nil
}

func (s *fakeStore) UpdateScanStatus(ctx context.Context, id uuid.UUID, status models.ScanStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusHistory = append(s.statusHistory, status)
	if scan, ok := s.scans[id]; ok {
		scan.Status = status
		scan.ErrorMessage = errMsg
	}
	return nil
}

func (s *fakeStore) SavePrices(ctx context.Context, records []models.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.prices = append(s.prices, records...)
	return nil
}

func (s *fakeStore) PricesByDate(ctx context.Context, scanID uuid.UUID, checkIn string, roomType models.RoomType) ([]models.PriceRecord, error) {
	return nil, nil
}

func (s *fakeStore) PricesByScan(ctx context.Context, scanID uuid.UUID) ([]models.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PriceRecord, len(s.prices))
	copy(out, s.prices)
	return out, nil
}

func (s *fakeStore) Log(ctx context.Context, entry models.ScanLog) error { return nil }
func (s *fakeStore) Close() error                                        { return nil }

func (s *fakeStore) savedPrices() []models.PriceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PriceRecord, len(s.prices))
	copy(out, s.prices)
	return out
}

func (s *fakeStore) statuses() []models.ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScanStatus, len(s.statusHistory))
	copy(out, s.statusHistory)
	return out
}

type stubExtractor struct {
	fn func(task models.ScrapeTask) ([]models.PriceRecord, error)
}

func (e *stubExtractor) Extract(ctx context.Context, task models.ScrapeTask) ([]models.PriceRecord, error) {
	return e.fn(task)
}

func pricingExtractor(source string, amount int64) *stubExtractor {
	return &stubExtractor{fn: func(task models.ScrapeTask) ([]models.PriceRecord, error) {
		var records []models.PriceRecord
		for _, rt := range task.RoomTypes {
			price := amount
			records = append(records, models.PriceRecord{
				ScanID:      task.ScanID,
				HotelID:     task.HotelID,
				CheckInDate: task.CheckIn(),
				RoomType:    rt,
				Price:       &price,
				Currency:    models.DefaultCurrency,
				IsAvailable: true,
				Source:      source,
			})
		}
		return records, nil
	}}
}

func failingExtractor() *stubExtractor {
	return &stubExtractor{fn: func(task models.ScrapeTask) ([]models.PriceRecord, error) {
		return nil, fmt.Errorf("navigation timeout")
	}}
}

func testHotels(n int) []models.Hotel {
	hotels := make([]models.Hotel, 0, n)
	for i := 0; i < n; i++ {
		hotels = append(hotels, models.Hotel{
			ID:         int64(i + 1),
			Name:       fmt.Sprintf("Hotel %d", i+1),
			BookingURL: fmt.Sprintf("https://www.booking.com/hotel/il/h%d.html", i+1),
			Category:   models.CategoryCompetitor,
			IsActive:   true,
		})
	}
	hotels[0].Category = models.CategoryTarget
	return hotels
}

func testRequest(days int) Request {
	return Request{
		TargetHotelID: 1,
		StartDate:     time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		DaysForward:   days,
		RoomTypes:     []models.RoomType{models.RoomOnly, models.WithBreakfast},
	}
}

func waitTerminal(t *testing.T, c *Coordinator, id uuid.UUID) Progress {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok := c.Progress(id); ok && p.Status.Terminal() {
			return p
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scan did not reach a terminal status in time")
	return Progress{}
}

func TestScanCompletesWithPrices(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, pricingExtractor(models.SourceRoomBlocks, 110000), nil,
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(2))

	id, err := c.Start(context.Background(), testRequest(3))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p := waitTerminal(t, c, id)
	if p.Status != models.ScanStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", p.Status, p.Error)
	}
	if p.CompletedHotels != 2 || p.TotalHotels != 2 {
		t.Errorf("progress = %d/%d, want 2/2", p.CompletedHotels, p.TotalHotels)
	}

	// 2 hotels x 3 days x 2 room types.
	if got := len(store.savedPrices()); got != 12 {
		t.Errorf("saved %d records, want 12", got)
	}
}

func TestScanRecordsEveryDayEvenWhenAllFail(t *testing.T) {
	store := newFakeStore()
	const days = 5
	c := NewCoordinator(store, failingExtractor(), nil,
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(1))

	id, err := c.Start(context.Background(), testRequest(days))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p := waitTerminal(t, c, id)
	if p.Status != models.ScanStatusCompleted {
		t.Fatalf("per-day failures must not fail the scan, got %s", p.Status)
	}

	records := store.savedPrices()
	if len(records) != days*2 {
		t.Fatalf("saved %d records, want %d", len(records), days*2)
	}

	dates := make(map[string]bool)
	for _, r := range records {
		if r.IsAvailable || r.Price != nil {
			t.Errorf("failed extraction must yield unavailable rows: %+v", r)
		}
		dates[r.CheckInDate] = true
	}
	if len(dates) != days {
		t.Errorf("expected %d distinct dates, got %d", days, len(dates))
	}
}

func TestScanStatusTransitionsForward(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, pricingExtractor(models.SourceRoomBlocks, 100000), nil,
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(3))

	id, err := c.Start(context.Background(), testRequest(1))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitTerminal(t, c, id)

	statuses := store.statuses()
	if len(statuses) != 2 || statuses[0] != models.ScanStatusRunning || statuses[1] != models.ScanStatusCompleted {
		t.Errorf("unexpected status history: %v", statuses)
	}

	store.mu.Lock()
	progress := append([]int(nil), store.progress...)
	store.mu.Unlock()

	last := 0
	for _, p := range progress {
		if p < last {
			t.Errorf("completedHotels went backwards: %v", progress)
			break
		}
		if p > 3 {
			t.Errorf("completedHotels exceeded totalHotels: %v", progress)
			break
		}
		last = p
	}
}

func TestScanFallsBackOnPrimaryFailure(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, failingExtractor(), pricingExtractor(models.SourceApify, 90000),
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(1))

	id, err := c.Start(context.Background(), testRequest(2))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p := waitTerminal(t, c, id)
	if p.Status != models.ScanStatusCompleted {
		t.Fatalf("status = %s, want completed", p.Status)
	}

	for _, r := range store.savedPrices() {
		if r.Source != models.SourceApify {
			t.Errorf("expected fallback records, got source %s", r.Source)
		}
		if !r.IsAvailable {
			t.Errorf("expected priced fallback record: %+v", r)
		}
	}
}

func TestScanSkipsFallbackWhenPolicyNever(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, failingExtractor(), pricingExtractor(models.SourceApify, 90000),
		scraper.NewPacer(0), config.FallbackNever, testHotels(1))

	id, err := c.Start(context.Background(), testRequest(1))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitTerminal(t, c, id)

	for _, r := range store.savedPrices() {
		if r.Source == models.SourceApify {
			t.Errorf("fallback must not run under policy never: %+v", r)
		}
		if r.IsAvailable {
			t.Errorf("expected unavailable rows: %+v", r)
		}
	}
}

func TestScanValidation(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, pricingExtractor(models.SourceRoomBlocks, 1), nil,
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(1))

	if _, err := c.Start(context.Background(), testRequest(0)); err == nil {
		t.Error("daysForward 0 must be rejected")
	}
	if _, err := c.Start(context.Background(), testRequest(366)); err == nil {
		t.Error("daysForward 366 must be rejected")
	}

	req := testRequest(1)
	req.RoomTypes = []models.RoomType{"suite"}
	if _, err := c.Start(context.Background(), req); err == nil {
		t.Error("unknown room type must be rejected")
	}
}

func TestScanRequiresExtractionPath(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, nil, nil, scraper.NewPacer(0), config.FallbackOnFailure, testHotels(1))

	if _, err := c.Start(context.Background(), testRequest(1)); err == nil {
		t.Error("no extraction path must be a configuration error")
	}
}

func TestScanFailsOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.saveErr = fmt.Errorf("disk full")
	c := NewCoordinator(store, pricingExtractor(models.SourceRoomBlocks, 1), nil,
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(1))

	id, err := c.Start(context.Background(), testRequest(1))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p := waitTerminal(t, c, id)
	if p.Status != models.ScanStatusFailed {
		t.Fatalf("status = %s, want failed", p.Status)
	}
	if p.Error == "" {
		t.Error("expected a human-readable error message")
	}
}

func TestScanCancellation(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, pricingExtractor(models.SourceRoomBlocks, 1), nil,
		scraper.NewPacer(20*time.Millisecond), config.FallbackOnFailure, testHotels(1))

	id, err := c.Start(context.Background(), testRequest(300))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	c.Cancel(id)

	p := waitTerminal(t, c, id)
	if p.Status != models.ScanStatusFailed {
		t.Fatalf("cancelled scan status = %s, want failed", p.Status)
	}
	if p.CompletedHotels != 0 {
		t.Errorf("hotel never finished, completedHotels = %d", p.CompletedHotels)
	}
}

type closingExtractor struct {
	*stubExtractor
	mu     sync.Mutex
	closes int
}

func (e *closingExtractor) Close() {
	e.mu.Lock()
	e.closes++
	e.mu.Unlock()
}

func (e *closingExtractor) closeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

func waitClosed(t *testing.T, e *closingExtractor) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if e.closeCount() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("browser session was never released")
}

func TestScanReleasesSessionOnCompletion(t *testing.T) {
	store := newFakeStore()
	ext := &closingExtractor{stubExtractor: pricingExtractor(models.SourceRoomBlocks, 100000)}
	c := NewCoordinator(store, ext, nil,
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(2))

	id, err := c.Start(context.Background(), testRequest(2))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitTerminal(t, c, id)

	waitClosed(t, ext)
	if got := ext.closeCount(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestScanReleasesSessionOnFailure(t *testing.T) {
	store := newFakeStore()
	store.saveErr = fmt.Errorf("disk full")
	ext := &closingExtractor{stubExtractor: pricingExtractor(models.SourceRoomBlocks, 100000)}
	c := NewCoordinator(store, ext, nil,
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(1))

	id, err := c.Start(context.Background(), testRequest(1))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	p := waitTerminal(t, c, id)
	if p.Status != models.ScanStatusFailed {
		t.Fatalf("status = %s, want failed", p.Status)
	}
	waitClosed(t, ext)
}

func TestProgressEvictsOldFinishedScans(t *testing.T) {
	store := newFakeStore()
	c := NewCoordinator(store, pricingExtractor(models.SourceRoomBlocks, 1), nil,
		scraper.NewPacer(0), config.FallbackOnFailure, testHotels(1))

	ids := make([]uuid.UUID, 0, maxFinishedScans+1)
	for i := 0; i < maxFinishedScans+1; i++ {
		id, err := c.Start(context.Background(), testRequest(1))
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		waitTerminal(t, c, id)
		ids = append(ids, id)
	}

	if _, ok := c.Progress(ids[0]); ok {
		t.Error("oldest finished scan should have been evicted")
	}
	if p, ok := c.Progress(ids[len(ids)-1]); !ok || p.Status != models.ScanStatusCompleted {
		t.Errorf("latest scan must stay readable, got ok=%v p=%+v", ok, p)
	}
}
