package scan

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"hotelwatch/config"
	"hotelwatch/models"
	"hotelwatch/scraper"
	"hotelwatch/storage"
)

const (
	minDaysForward = 1
	maxDaysForward = 365

	// How many finished scans keep an in-memory progress snapshot. A
	// long-lived daemon runs scans forever; older history lives in the
	// store, not the map.
	maxFinishedScans = 32
)

// Progress is the externally visible scan state. Safe to read while
// the coordinator is writing; callers get a consistent snapshot.
type Progress struct {
	Status          models.ScanStatus `json:"status"`
	CompletedHotels int               `json:"completed_hotels"`
	TotalHotels     int               `json:"total_hotels"`
	Error           string            `json:"error,omitempty"`
}

// Request describes one scan the caller wants run.
type Request struct {
	TargetHotelID int64
	StartDate     time.Time
	DaysForward   int
	RoomTypes     []models.RoomType
}

// Coordinator owns scan lifecycles. Each scan runs as one sequential
// pipeline: hotel by hotel, day by day, with pacing between days.
// Multiple scans may run concurrently; they share nothing but the
// store.
type Coordinator struct {
	store    storage.Store
	primary  scraper.Extractor
	fallback scraper.Extractor
	pacer    *scraper.Pacer
	policy   config.FallbackPolicy
	hotels   []models.Hotel

	mu       sync.RWMutex
	progress map[uuid.UUID]Progress
	cancels  map[uuid.UUID]context.CancelFunc
	finished []uuid.UUID
}

// NewCoordinator wires a coordinator. primary may be nil when the
// browser path is disabled; fallback may be nil when no remote
// credential is configured.
func NewCoordinator(store storage.Store, primary, fallback scraper.Extractor, pacer *scraper.Pacer, policy config.FallbackPolicy, hotels []models.Hotel) *Coordinator {
	return &Coordinator{
		store:    store,
		primary:  primary,
		fallback: fallback,
		pacer:    pacer,
		policy:   policy,
		hotels:   hotels,
		progress: make(map[uuid.UUID]Progress),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start validates a request, persists the scan as pending and kicks
// off its pipeline goroutine. Returns the scan id immediately.
func (c *Coordinator) Start(ctx context.Context, req Request) (uuid.UUID, error) {
	if req.DaysForward < minDaysForward || req.DaysForward > maxDaysForward {
		return uuid.Nil, fmt.Errorf("daysForward must be in [%d,%d], got %d", minDaysForward, maxDaysForward, req.DaysForward)
	}
	for _, rt := range req.RoomTypes {
		if !models.ValidRoomType(rt) {
			return uuid.Nil, fmt.Errorf("unknown room type %q", rt)
		}
	}
	if len(req.RoomTypes) == 0 {
		req.RoomTypes = []models.RoomType{models.RoomOnly, models.WithBreakfast}
	}
	if len(c.hotels) == 0 {
		return uuid.Nil, fmt.Errorf("no hotels configured")
	}
	if c.primary == nil && c.fallback == nil {
		return uuid.Nil, fmt.Errorf("no extraction path available: browser disabled and no fallback credential")
	}

	scan := &models.Scan{
		ID:            uuid.New(),
		TargetHotelID: req.TargetHotelID,
		StartDate:     req.StartDate,
		DaysForward:   req.DaysForward,
		Status:        models.ScanStatusPending,
		TotalHotels:   len(c.hotels),
		CreatedAt:     time.Now(),
	}
	if err := c.store.CreateScan(ctx, scan); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create scan: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.progress[scan.ID] = Progress{Status: models.ScanStatusPending, TotalHotels: scan.TotalHotels}
	c.cancels[scan.ID] = cancel
	c.mu.Unlock()

	go c.run(runCtx, scan, req.RoomTypes)

	return scan.ID, nil
}

// Progress returns the current snapshot for a scan id. Snapshots of
// finished scans are kept for the most recent maxFinishedScans only;
// older scans live in the store.
func (c *Coordinator) Progress(id uuid.UUID) (Progress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.progress[id]
	return p, ok
}

// Cancel requests cooperative cancellation of a running scan. The
// pipeline notices between day iterations.
func (c *Coordinator) Cancel(id uuid.UUID) {
	c.mu.RLock()
	cancel, ok := c.cancels[id]
	c.mu.RUnlock()
	if ok {
		cancel()
	}
}

func (c *Coordinator) run(ctx context.Context, scan *models.Scan, roomTypes []models.RoomType) {
	defer func() {
		// The browser session belongs to this scan, not the process.
		// Release it on every exit path; the next scan relaunches.
		if session, ok := c.primary.(scraper.SessionExtractor); ok {
			session.Close()
		}
		c.mu.Lock()
		delete(c.cancels, scan.ID)
		c.mu.Unlock()
	}()

	c.setStatus(scan.ID, models.ScanStatusRunning, "")
	c.logScan(scan.ID, models.LogLevelInfo, 0,
		fmt.Sprintf("scan started: %d hotels, %d days from %s", len(c.hotels), scan.DaysForward, scan.StartDate.Format(models.DateLayout)))

	completed := 0
	for _, hotel := range c.hotels {
		if err := c.scanHotel(ctx, scan, hotel, roomTypes); err != nil {
			c.logScan(scan.ID, models.LogLevelError, hotel.ID, err.Error())
			c.setStatus(scan.ID, models.ScanStatusFailed, err.Error())
			return
		}

		completed++
		c.setCompleted(scan.ID, completed)
		c.logScan(scan.ID, models.LogLevelInfo, hotel.ID,
			fmt.Sprintf("hotel done (%d/%d): %s", completed, len(c.hotels), hotel.Name))
	}

	c.setStatus(scan.ID, models.ScanStatusCompleted, "")
	c.logScan(scan.ID, models.LogLevelInfo, 0, "scan completed")
}

// scanHotel walks one hotel's full date range. Per-day extraction
// failures become unavailable rows; only store errors, configuration
// errors and cancellation bubble up and fail the scan.
func (c *Coordinator) scanHotel(ctx context.Context, scan *models.Scan, hotel models.Hotel, roomTypes []models.RoomType) error {
	for offset := 0; offset < scan.DaysForward; offset++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scan cancelled")
		}

		checkIn := scan.StartDate.AddDate(0, 0, offset)
		task := models.ScrapeTask{
			ScanID:       scan.ID,
			HotelID:      hotel.ID,
			HotelURL:     hotel.BookingURL,
			CheckInDate:  checkIn,
			CheckOutDate: checkIn.AddDate(0, 0, 1),
			RoomTypes:    roomTypes,
		}

		records := c.extractTask(ctx, task)
		if err := c.store.SavePrices(ctx, records); err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}

		// Pacing runs after every day, success or failure.
		if err := c.pacer.Wait(ctx); err != nil {
			return fmt.Errorf("scan cancelled")
		}
	}
	return nil
}

// extractTask runs the primary path, then the fallback per policy.
// It always produces one record per requested room type.
func (c *Coordinator) extractTask(ctx context.Context, task models.ScrapeTask) []models.PriceRecord {
	usePrimary := c.primary != nil && c.policy != config.FallbackAlways

	if usePrimary {
		records, err := c.primary.Extract(ctx, task)
		if err == nil {
			return records
		}

		log.Printf("Primary extraction failed for hotel %d on %s: %v", task.HotelID, task.CheckIn(), err)
		c.logScan(task.ScanID, models.LogLevelWarn, task.HotelID,
			fmt.Sprintf("primary extraction failed for %s: %v", task.CheckIn(), err))

		if c.fallback == nil || c.policy == config.FallbackNever {
			return scraper.UnavailableRecords(task, models.SourceNone)
		}
	}

	if c.fallback == nil {
		return scraper.UnavailableRecords(task, models.SourceNone)
	}

	records, err := c.fallback.Extract(ctx, task)
	if err != nil {
		log.Printf("Fallback extraction failed for hotel %d on %s: %v", task.HotelID, task.CheckIn(), err)
		return scraper.UnavailableRecords(task, models.SourceApify)
	}
	return records
}

// setStatus advances a scan's status, refusing backwards transitions.
func (c *Coordinator) setStatus(id uuid.UUID, status models.ScanStatus, errMsg string) {
	c.mu.Lock()
	p := c.progress[id]
	if p.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	p.Status = status
	p.Error = errMsg
	c.progress[id] = p
	if status.Terminal() {
		c.finished = append(c.finished, id)
		for len(c.finished) > maxFinishedScans {
			delete(c.progress, c.finished[0])
			c.finished = c.finished[1:]
		}
	}
	c.mu.Unlock()

	// Terminal writes must land even when the scan context was
	// cancelled, so persistence uses its own context.
	if err := c.store.UpdateScanStatus(context.Background(), id, status, errMsg); err != nil {
		log.Printf("Failed to persist scan status %s: %v", status, err)
	}
}

func (c *Coordinator) setCompleted(id uuid.UUID, completed int) {
	c.mu.Lock()
	p := c.progress[id]
	if completed > p.CompletedHotels && completed <= p.TotalHotels {
		p.CompletedHotels = completed
		c.progress[id] = p
	}
	c.mu.Unlock()

	if err := c.store.UpdateScanProgress(context.Background(), id, completed); err != nil {
		log.Printf("Failed to persist scan progress: %v", err)
	}
}

func (c *Coordinator) logScan(id uuid.UUID, level models.LogLevel, hotelID int64, msg string) {
	entry := models.ScanLog{
		ScanID:    &id,
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		HotelID:   hotelID,
	}
	if err := c.store.Log(context.Background(), entry); err != nil {
		log.Printf("Failed to persist scan log: %v", err)
	}
}
