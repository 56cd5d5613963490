package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"hotelwatch/config"
	"hotelwatch/identity"
	"hotelwatch/models"
)

// SnapshotUploader stores raw page HTML for post-mortem debugging of
// extraction misses. Optional; a nil uploader disables snapshots.
type SnapshotUploader interface {
	Upload(ctx context.Context, key string, html []byte) error
}

// BrowserExtractor drives a real browser against hotel pages. The
// browser launches lazily on the first Extract and Close releases it;
// the owning scan pipeline must Close on every exit path or chromium
// processes leak. A closed extractor relaunches on the next Extract,
// so one instance serves many scans.
type BrowserExtractor struct {
	cfg       config.BrowserConfig
	snapshots SnapshotUploader

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserExtractor(cfg config.BrowserConfig, snapshots SnapshotUploader) *BrowserExtractor {
	return &BrowserExtractor{cfg: cfg, snapshots: snapshots}
}

func (b *BrowserExtractor) ensureBrowser() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.pw = pw
	b.browser = browser
	b.initialized = true
	return nil
}

func (b *BrowserExtractor) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.pw != nil {
		b.pw.Stop()
		b.pw = nil
	}
	b.initialized = false
}

// Extract renders the hotel page for one date and runs the strategy
// chain over it. Navigation and rendering failures come back as an
// error; the coordinator decides whether to fall back or record the
// date as unavailable.
func (b *BrowserExtractor) Extract(ctx context.Context, task models.ScrapeTask) ([]models.PriceRecord, error) {
	if err := b.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := b.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	searchURL := buildSearchURL(task)
	_, err = page.Goto(searchURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(b.cfg.NavTimeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("navigation failed for %s: %w", task.CheckIn(), err)
	}

	// Bounded settle for the price widgets; never an open-ended wait.
	page.WaitForTimeout(float64(b.cfg.SettleDelay.Milliseconds()))
	dismissOverlays(page)

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	offers, source := RunStrategies(doc)
	if len(offers) == 0 {
		if !detectSoldOut(content) {
			b.saveSnapshot(ctx, task, content)
		}
		return UnavailableRecords(task, models.SourceNone), nil
	}

	return OffersToRecords(task, offers, source), nil
}

var overlaySelectors = []string{
	"#onetrust-accept-btn-handler",
	"button[aria-label='Dismiss sign-in info.']",
	"button[aria-label*='Dismiss']",
	"button:has-text('Accept')",
	"button:has-text('Accept All')",
	"button[id*='accept']",
	"button[class*='consent']",
}

// dismissOverlays closes cookie banners and sign-in popups. Purely
// best effort; a banner we cannot close just leaves the page as-is.
func dismissOverlays(page playwright.Page) {
	for _, selector := range overlaySelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("Dismissing overlay: %s", selector)
			btn.Click()
			page.WaitForTimeout(500)
		}
	}
}

var soldOutMarkers = []string{
	"sold out",
	"no availability",
	"אזלו החדרים",
}

// detectSoldOut distinguishes a genuinely full hotel from a page the
// strategies simply failed to read, so sold-out dates do not trigger
// debug snapshots.
func detectSoldOut(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range soldOutMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (b *BrowserExtractor) saveSnapshot(ctx context.Context, task models.ScrapeTask, content string) {
	if b.snapshots == nil {
		return
	}
	key := identity.SnapshotKey(task.HotelURL, task.CheckIn())
	if err := b.snapshots.Upload(ctx, key, []byte(content)); err != nil {
		log.Printf("Snapshot upload failed for %s: %v", key, err)
	}
}

func buildSearchURL(task models.ScrapeTask) string {
	params := url.Values{}
	params.Set("checkin", task.CheckIn())
	params.Set("checkout", task.CheckOut())
	params.Set("group_adults", "2")
	params.Set("group_children", "0")
	params.Set("no_rooms", "1")
	params.Set("selected_currency", models.DefaultCurrency)

	sep := "?"
	if strings.Contains(task.HotelURL, "?") {
		sep = "&"
	}
	return task.HotelURL + sep + params.Encode()
}
