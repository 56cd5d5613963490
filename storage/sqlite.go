package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"hotelwatch/models"
)

// SQLiteStore is the default single-node backend. WAL mode so the
// status poller can read while a scan goroutine writes.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		target_hotel_id INTEGER NOT NULL,
		start_date DATETIME NOT NULL,
		days_forward INTEGER NOT NULL,
		status TEXT NOT NULL,
		total_hotels INTEGER DEFAULT 0,
		completed_hotels INTEGER DEFAULT 0,
		error_message TEXT DEFAULT '',
		started_at DATETIME,
		completed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS price_records (
		id INTEGER PRIMARY KEY,
		scan_id TEXT NOT NULL,
		hotel_id INTEGER NOT NULL,
		check_in_date TEXT NOT NULL,
		room_type TEXT NOT NULL,
		price INTEGER,
		currency TEXT NOT NULL,
		is_available BOOLEAN NOT NULL,
		source TEXT NOT NULL,
		room_description TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (scan_id) REFERENCES scans(id)
	);

	CREATE INDEX IF NOT EXISTS idx_prices_scan_date
		ON price_records(scan_id, check_in_date, room_type);

	CREATE TABLE IF NOT EXISTS scan_logs (
		id INTEGER PRIMARY KEY,
		scan_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		hotel_id INTEGER DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateScan(ctx context.Context, scan *models.Scan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (id, target_hotel_id, start_date, days_forward, status, total_hotels, completed_hotels, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ID.String(), scan.TargetHotelID, scan.StartDate, scan.DaysForward,
		scan.Status, scan.TotalHotels, scan.CompletedHotels, scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetScan(ctx context.Context, id uuid.UUID) (*models.Scan, error) {
	return s.scanRow(s.db.QueryRowContext(ctx, `
		SELECT id, target_hotel_id, start_date, days_forward, status, total_hotels,
			completed_hotels, error_message, started_at, completed_at, created_at
		FROM scans WHERE id = ?`, id.String()))
}

func (s *SQLiteStore) LatestScan(ctx context.Context) (*models.Scan, error) {
	return s.scanRow(s.db.QueryRowContext(ctx, `
		SELECT id, target_hotel_id, start_date, days_forward, status, total_hotels,
			completed_hotels, error_message, started_at, completed_at, created_at
		FROM scans ORDER BY created_at DESC LIMIT 1`))
}

func (s *SQLiteStore) scanRow(row *sql.Row) (*models.Scan, error) {
	var scan models.Scan
	var id string
	err := row.Scan(&id, &scan.TargetHotelID, &scan.StartDate, &scan.DaysForward,
		&scan.Status, &scan.TotalHotels, &scan.CompletedHotels, &scan.ErrorMessage,
		&scan.StartedAt, &scan.CompletedAt, &scan.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	scan.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad scan id %q: %w", id, err)
	}
	return &scan, nil
}

func (s *SQLiteStore) UpdateScanProgress(ctx context.Context, id uuid.UUID, completedHotels int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scans SET completed_hotels = ? WHERE id = ?`,
		completedHotels, id.String())
	return err
}

func (s *SQLiteStore) UpdateScanStatus(ctx context.Context, id uuid.UUID, status models.ScanStatus, errMsg string) error {
	now := time.Now()
	var err error
	switch status {
	case models.ScanStatusRunning:
		_, err = s.db.ExecContext(ctx,
			`UPDATE scans SET status = ?, started_at = ? WHERE id = ?`,
			status, now, id.String())
	case models.ScanStatusCompleted, models.ScanStatusFailed:
		_, err = s.db.ExecContext(ctx,
			`UPDATE scans SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
			status, errMsg, now, id.String())
	default:
		_, err = s.db.ExecContext(ctx,
			`UPDATE scans SET status = ? WHERE id = ?`, status, id.String())
	}
	return err
}

func (s *SQLiteStore) SavePrices(ctx context.Context, records []models.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_records (scan_id, hotel_id, check_in_date, room_type, price, currency, is_available, source, room_description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ScanID.String(), r.HotelID, r.CheckInDate, r.RoomType,
			r.Price, r.Currency, r.IsAvailable, r.Source, r.RoomDescription, now,
		); err != nil {
			return fmt.Errorf("insert price record: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) PricesByDate(ctx context.Context, scanID uuid.UUID, checkIn string, roomType models.RoomType) ([]models.PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scan_id, hotel_id, check_in_date, room_type, price, currency, is_available, source, room_description, created_at
		FROM price_records
		WHERE scan_id = ? AND check_in_date = ? AND room_type = ?`,
		scanID.String(), checkIn, roomType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrices(rows)
}

func (s *SQLiteStore) PricesByScan(ctx context.Context, scanID uuid.UUID) ([]models.PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scan_id, hotel_id, check_in_date, room_type, price, currency, is_available, source, room_description, created_at
		FROM price_records
		WHERE scan_id = ?
		ORDER BY check_in_date, hotel_id`,
		scanID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrices(rows)
}

func collectPrices(rows *sql.Rows) ([]models.PriceRecord, error) {
	var records []models.PriceRecord
	for rows.Next() {
		var r models.PriceRecord
		var scanID string
		if err := rows.Scan(&r.ID, &scanID, &r.HotelID, &r.CheckInDate, &r.RoomType,
			&r.Price, &r.Currency, &r.IsAvailable, &r.Source, &r.RoomDescription, &r.CreatedAt); err != nil {
			return nil, err
		}
		if parsed, err := uuid.Parse(scanID); err == nil {
			r.ScanID = parsed
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Log(ctx context.Context, entry models.ScanLog) error {
	var scanID interface{}
	if entry.ScanID != nil {
		scanID = entry.ScanID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_logs (scan_id, timestamp, level, message, hotel_id)
		VALUES (?, ?, ?, ?, ?)`,
		scanID, entry.Timestamp, entry.Level, entry.Message, entry.HotelID)
	return err
}
