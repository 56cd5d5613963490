package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hotelwatch/models"
)

// PostgresStore backs deployments where scan data is shared with the
// dashboard database instead of a local file.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id UUID PRIMARY KEY,
		target_hotel_id BIGINT NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		days_forward INT NOT NULL,
		status TEXT NOT NULL,
		total_hotels INT DEFAULT 0,
		completed_hotels INT DEFAULT 0,
		error_message TEXT DEFAULT '',
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS price_records (
		id BIGSERIAL PRIMARY KEY,
		scan_id UUID NOT NULL REFERENCES scans(id),
		hotel_id BIGINT NOT NULL,
		check_in_date TEXT NOT NULL,
		room_type TEXT NOT NULL,
		price BIGINT,
		currency TEXT NOT NULL,
		is_available BOOLEAN NOT NULL,
		source TEXT NOT NULL,
		room_description TEXT DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_prices_scan_date
		ON price_records(scan_id, check_in_date, room_type);

	CREATE TABLE IF NOT EXISTS scan_logs (
		id BIGSERIAL PRIMARY KEY,
		scan_id UUID,
		timestamp TIMESTAMPTZ,
		level TEXT,
		message TEXT,
		hotel_id BIGINT DEFAULT 0
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) CreateScan(ctx context.Context, scan *models.Scan) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scans (id, target_hotel_id, start_date, days_forward, status, total_hotels, completed_hotels, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		scan.ID, scan.TargetHotelID, scan.StartDate, scan.DaysForward,
		scan.Status, scan.TotalHotels, scan.CompletedHotels, scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetScan(ctx context.Context, id uuid.UUID) (*models.Scan, error) {
	return s.scanRow(s.pool.QueryRow(ctx, `
		SELECT id, target_hotel_id, start_date, days_forward, status, total_hotels,
			completed_hotels, error_message, started_at, completed_at, created_at
		FROM scans WHERE id = $1`, id))
}

func (s *PostgresStore) LatestScan(ctx context.Context) (*models.Scan, error) {
	return s.scanRow(s.pool.QueryRow(ctx, `
		SELECT id, target_hotel_id, start_date, days_forward, status, total_hotels,
			completed_hotels, error_message, started_at, completed_at, created_at
		FROM scans ORDER BY created_at DESC LIMIT 1`))
}

func (s *PostgresStore) scanRow(row pgx.Row) (*models.Scan, error) {
	var scan models.Scan
	err := row.Scan(&scan.ID, &scan.TargetHotelID, &scan.StartDate, &scan.DaysForward,
		&scan.Status, &scan.TotalHotels, &scan.CompletedHotels, &scan.ErrorMessage,
		&scan.StartedAt, &scan.CompletedAt, &scan.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (s *PostgresStore) UpdateScanProgress(ctx context.Context, id uuid.UUID, completedHotels int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scans SET completed_hotels = $1 WHERE id = $2`, completedHotels, id)
	return err
}

func (s *PostgresStore) UpdateScanStatus(ctx context.Context, id uuid.UUID, status models.ScanStatus, errMsg string) error {
	var err error
	switch status {
	case models.ScanStatusRunning:
		_, err = s.pool.Exec(ctx,
			`UPDATE scans SET status = $1, started_at = NOW() WHERE id = $2`, status, id)
	case models.ScanStatusCompleted, models.ScanStatusFailed:
		_, err = s.pool.Exec(ctx,
			`UPDATE scans SET status = $1, error_message = $2, completed_at = NOW() WHERE id = $3`,
			status, errMsg, id)
	default:
		_, err = s.pool.Exec(ctx,
			`UPDATE scans SET status = $1 WHERE id = $2`, status, id)
	}
	return err
}

func (s *PostgresStore) SavePrices(ctx context.Context, records []models.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO price_records (scan_id, hotel_id, check_in_date, room_type, price, currency, is_available, source, room_description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.ScanID, r.HotelID, r.CheckInDate, r.RoomType,
			r.Price, r.Currency, r.IsAvailable, r.Source, r.RoomDescription)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert price record: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) PricesByDate(ctx context.Context, scanID uuid.UUID, checkIn string, roomType models.RoomType) ([]models.PriceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, scan_id, hotel_id, check_in_date, room_type, price, currency, is_available, source, room_description, created_at
		FROM price_records
		WHERE scan_id = $1 AND check_in_date = $2 AND room_type = $3`,
		scanID, checkIn, roomType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgxPrices(rows)
}

func (s *PostgresStore) PricesByScan(ctx context.Context, scanID uuid.UUID) ([]models.PriceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, scan_id, hotel_id, check_in_date, room_type, price, currency, is_available, source, room_description, created_at
		FROM price_records
		WHERE scan_id = $1
		ORDER BY check_in_date, hotel_id`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPgxPrices(rows)
}

func collectPgxPrices(rows pgx.Rows) ([]models.PriceRecord, error) {
	var records []models.PriceRecord
	for rows.Next() {
		var r models.PriceRecord
		if err := rows.Scan(&r.ID, &r.ScanID, &r.HotelID, &r.CheckInDate, &r.RoomType,
			&r.Price, &r.Currency, &r.IsAvailable, &r.Source, &r.RoomDescription, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Log(ctx context.Context, entry models.ScanLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_logs (scan_id, timestamp, level, message, hotel_id)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ScanID, entry.Timestamp, entry.Level, entry.Message, entry.HotelID)
	return err
}
