package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"hotelwatch/config"
	"hotelwatch/scan"
	"hotelwatch/workers"
)

// Scheduler fires recurring scans from either a cron expression or a
// plain interval, and runs the URL healthcheck before each one.
type Scheduler struct {
	cfg         *config.Config
	coordinator *scan.Coordinator
	health      *workers.HealthChecker
	cron        *cron.Cron
	ticker      *time.Ticker
	stopCh      chan struct{}

	onDone func(ctx context.Context, scanID uuid.UUID)
}

func New(cfg *config.Config, coordinator *scan.Coordinator, health *workers.HealthChecker) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		coordinator: coordinator,
		health:      health,
		cron:        cron.New(),
		stopCh:      make(chan struct{}),
	}
}

// OnScanDone registers a callback invoked after a scheduled scan
// reaches a terminal status.
func (s *Scheduler) OnScanDone(fn func(ctx context.Context, scanID uuid.UUID)) {
	s.onDone = fn
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runScheduledScan(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runScheduledScan(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, scans run on demand only")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs one scan immediately, outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.runScan(ctx)
}

func (s *Scheduler) runScheduledScan(ctx context.Context) {
	if err := s.runScan(ctx); err != nil {
		log.Printf("Scheduled scan error: %v", err)
	}
}

func (s *Scheduler) runScan(ctx context.Context) error {
	target := s.cfg.TargetHotel()
	if target == nil {
		return fmt.Errorf("no target hotel configured")
	}

	if s.health != nil {
		if bad := s.health.Run(ctx); bad > 0 {
			log.Printf("Healthcheck: %d hotel URLs unreachable, scanning anyway", bad)
		}
	}

	scanID, err := s.coordinator.Start(ctx, scan.Request{
		TargetHotelID: target.ID,
		StartDate:     time.Now().Truncate(24 * time.Hour),
		DaysForward:   s.cfg.Scan.DaysForward,
		RoomTypes:     s.cfg.Scan.RoomTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to start scan: %w", err)
	}
	log.Printf("Scan %s started", scanID)

	go s.watch(ctx, scanID)
	return nil
}

// watch polls the scan until terminal, then fires the done callback.
func (s *Scheduler) watch(ctx context.Context, scanID uuid.UUID) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p, ok := s.coordinator.Progress(scanID)
			if !ok {
				return
			}
			if p.Status.Terminal() {
				log.Printf("Scan %s finished: %s (%d/%d hotels)", scanID, p.Status, p.CompletedHotels, p.TotalHotels)
				if s.onDone != nil {
					s.onDone(ctx, scanID)
				}
				return
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
