package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"hotelwatch/analysis"
	"hotelwatch/config"
	"hotelwatch/httputil"
	"hotelwatch/logging"
	"hotelwatch/models"
	"hotelwatch/report"
	"hotelwatch/scan"
	"hotelwatch/scheduler"
	"hotelwatch/scraper"
	"hotelwatch/storage"
	"hotelwatch/workers"
)

var (
	scanNow     = flag.Bool("scan", false, "Run one scan immediately")
	days        = flag.Int("days", 0, "Override days forward for this run")
	analyzeDate = flag.String("analyze", "", "Print market analysis for a check-in date (YYYY-MM-DD) from the latest scan")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *days > 0 {
		cfg.Scan.DaysForward = *days
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting hotelwatch...")
	log.Printf("Loaded %d hotels (%d active)", len(cfg.Hotels), len(cfg.ActiveHotels()))

	target := cfg.TargetHotel()
	if target == nil {
		log.Fatal("No target hotel configured in hotels roster")
	}
	log.Printf("Target hotel: %s", target.Name)

	ctx := context.Background()
	clients := httputil.NewClients(cfg.Proxy.URL)

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if *analyzeDate != "" {
		if err := printAnalysis(ctx, store, *analyzeDate, target.ID); err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
		return
	}

	var snapshots scraper.SnapshotUploader
	if cfg.Snapshots.Bucket != "" {
		snaps, err := storage.NewSnapshotStore(ctx, cfg.Snapshots)
		if err != nil {
			log.Printf("Warning: snapshot store unavailable: %v", err)
		} else {
			snapshots = snaps
			log.Printf("Snapshot bucket: %s", cfg.Snapshots.Bucket)
		}
	}

	pacer := scraper.NewPacer(cfg.Scan.RequestDelay)

	// The coordinator owns the browser lifecycle: it launches lazily on
	// the first task of a scan and is closed when that scan ends.
	var primary scraper.Extractor
	if cfg.Browser.Enabled {
		primary = scraper.NewBrowserExtractor(cfg.Browser, snapshots)
	}

	var fallback scraper.Extractor
	if cfg.Apify.Enabled && cfg.Scan.Fallback != config.FallbackNever {
		client := scraper.NewApifyClient(cfg.Apify, clients.API)
		adapter := scraper.NewBookingAdapter(cfg.Apify.ActorID)
		fb, err := scraper.NewFallbackExtractor(client, adapter, pacer)
		if err != nil {
			if cfg.Scan.Fallback == config.FallbackAlways || !cfg.Browser.Enabled {
				log.Fatalf("Fallback required but unavailable: %v", err)
			}
			log.Printf("Warning: fallback disabled: %v", err)
		} else {
			fallback = fb
		}
	}

	coordinator := scan.NewCoordinator(store, primary, fallback, pacer, cfg.Scan.Fallback, cfg.ActiveHotels())
	health := workers.NewHealthChecker(clients.Scraping, store, cfg.ActiveHotels())
	mailer := report.NewMailer(cfg.Email, store)

	sched := scheduler.New(cfg, coordinator, health)
	if mailer.Enabled() {
		sched.OnScanDone(func(ctx context.Context, scanID uuid.UUID) {
			if err := mailer.SendScanSummary(ctx, scanID, target.ID); err != nil {
				log.Printf("Failed to send scan summary: %v", err)
			}
		})
		log.Printf("Scan summaries go to %s", cfg.Email.To)
	}

	if *scanNow {
		log.Println("Running one scan...")
		if err := runOnce(ctx, coordinator, cfg, target.ID); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		log.Println("Scan complete!")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Postgres.DBURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.Postgres.DBURL)
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DBURL))
		return store, nil
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return store, nil
}

// runOnce starts a scan and blocks until it is terminal.
func runOnce(ctx context.Context, coordinator *scan.Coordinator, cfg *config.Config, targetHotelID int64) error {
	scanID, err := coordinator.Start(ctx, scan.Request{
		TargetHotelID: targetHotelID,
		StartDate:     time.Now().Truncate(24 * time.Hour),
		DaysForward:   cfg.Scan.DaysForward,
		RoomTypes:     cfg.Scan.RoomTypes,
	})
	if err != nil {
		return err
	}
	log.Printf("Scan %s started", scanID)

	for {
		time.Sleep(5 * time.Second)
		p, ok := coordinator.Progress(scanID)
		if !ok {
			return nil
		}
		log.Printf("Progress: %s %d/%d", p.Status, p.CompletedHotels, p.TotalHotels)
		if p.Status.Terminal() {
			if p.Error != "" {
				log.Printf("Scan ended with error: %s", p.Error)
			}
			return nil
		}
	}
}

// printAnalysis prints the market picture for one check-in date from
// the most recent scan, one line per room type.
func printAnalysis(ctx context.Context, store storage.Store, date string, targetHotelID int64) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}

	latest, err := store.LatestScan(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("no scans recorded yet")
	}
	log.Printf("Latest scan %s (%s, %s)", latest.ID, latest.Status, latest.StartDate.Format(models.DateLayout))

	for _, roomType := range []models.RoomType{models.RoomOnly, models.WithBreakfast} {
		records, err := store.PricesByDate(ctx, latest.ID, date, roomType)
		if err != nil {
			return err
		}

		a := analysis.AnalyzeMarket(records, targetHotelID)
		if a.CompetitorCount == 0 {
			log.Printf("%s %s: no priced records", date, roomType)
			continue
		}

		line := fmt.Sprintf("%s %s: avg %s, median %s, range %s-%s",
			date, roomType,
			report.FormatPrice(a.AveragePrice, a.Currency), report.FormatPrice(a.MedianPrice, a.Currency),
			report.FormatPrice(a.MinPrice, a.Currency), report.FormatPrice(a.MaxPrice, a.Currency))
		if a.TargetPrice != nil && a.TargetPosition != nil {
			line += fmt.Sprintf(", target %s (#%d of %d)",
				report.FormatPrice(*a.TargetPrice, a.Currency), *a.TargetPosition, a.CompetitorCount)
		}
		log.Println(line)
	}
	return nil
}

// maskConnectionString hides the password in a connection string
// before it hits the logs.
func maskConnectionString(connStr string) string {
	schemeEnd := strings.Index(connStr, "://")
	if schemeEnd < 0 {
		return connStr
	}
	rest := connStr[schemeEnd+3:]

	atIdx := strings.Index(rest, "@")
	if atIdx < 0 {
		return connStr
	}
	colonIdx := strings.Index(rest[:atIdx], ":")
	if colonIdx < 0 {
		return connStr
	}
	return connStr[:schemeEnd+3] + rest[:colonIdx+1] + "****" + rest[atIdx:]
}
