package report

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"

	"hotelwatch/analysis"
	"hotelwatch/config"
	"hotelwatch/models"
	"hotelwatch/storage"
)

// Mailer sends post-scan summary emails to the operator.
type Mailer struct {
	cfg   config.EmailConfig
	store storage.Store
}

func NewMailer(cfg config.EmailConfig, store storage.Store) *Mailer {
	return &Mailer{cfg: cfg, store: store}
}

// Enabled reports whether SMTP credentials are configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Address != "" && m.cfg.Password != "" && m.cfg.To != ""
}

// SendScanSummary emails the market picture for one finished scan.
func (m *Mailer) SendScanSummary(ctx context.Context, scanID uuid.UUID, targetHotelID int64) error {
	scan, err := m.store.GetScan(ctx, scanID)
	if err != nil {
		return fmt.Errorf("load scan: %w", err)
	}
	if scan == nil {
		return fmt.Errorf("scan %s not found", scanID)
	}

	records, err := m.store.PricesByScan(ctx, scanID)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}

	body := buildSummary(scan, records, targetHotelID)

	e := email.NewEmail()
	e.From = m.cfg.Address
	e.To = []string{m.cfg.To}
	e.Subject = fmt.Sprintf("Price scan %s: %s", scan.Status, scan.StartDate.Format(models.DateLayout))
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	auth := smtp.PlainAuth("", m.cfg.Address, m.cfg.Password, m.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func buildSummary(scan *models.Scan, records []models.PriceRecord, targetHotelID int64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scan %s\n", scan.ID)
	fmt.Fprintf(&b, "Status: %s (%d/%d hotels)\n", scan.Status, scan.CompletedHotels, scan.TotalHotels)
	if scan.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", scan.ErrorMessage)
	}
	fmt.Fprintf(&b, "Range: %s, %d days\n\n", scan.StartDate.Format(models.DateLayout), scan.DaysForward)

	available := 0
	for _, r := range records {
		if r.IsAvailable {
			available++
		}
	}
	fmt.Fprintf(&b, "Records: %d (%d priced, %d unavailable)\n\n", len(records), available, len(records)-available)

	byDate := analysis.AnalyzeByDate(records, targetHotelID)
	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		a := byDate[key]
		if a.CompetitorCount == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: avg %s, median %s, range %s-%s",
			key, FormatPrice(a.AveragePrice, a.Currency), FormatPrice(a.MedianPrice, a.Currency),
			FormatPrice(a.MinPrice, a.Currency), FormatPrice(a.MaxPrice, a.Currency))
		if a.TargetPrice != nil && a.TargetPosition != nil {
			fmt.Fprintf(&b, ", target %s (#%d of %d)",
				FormatPrice(*a.TargetPrice, a.Currency), *a.TargetPosition, a.CompetitorCount)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// FormatPrice renders minor units as whole currency units, using the
// symbol for currencies the roster actually sees and the ISO code for
// anything else.
func FormatPrice(minor int64, currency string) string {
	amount := minor / 100
	switch currency {
	case "", models.DefaultCurrency:
		return fmt.Sprintf("₪%d", amount)
	case "USD":
		return fmt.Sprintf("$%d", amount)
	case "EUR":
		return fmt.Sprintf("€%d", amount)
	default:
		return fmt.Sprintf("%s %d", currency, amount)
	}
}
