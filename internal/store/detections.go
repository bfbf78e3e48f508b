package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DetectionRow is one cached classification keyed by content hash. The result
// column carries the numeric label value; interpretation belongs to the
// detection cache layer.
type DetectionRow struct {
	Key       string
	Result    int
	CreatedAt time.Time
}

// GetDetection fetches a cached detection by key.
func (s *Store) GetDetection(ctx context.Context, key string) (DetectionRow, bool, error) {
	var row DetectionRow
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT key, result, created_at FROM detections WHERE key = ?", key,
	).Scan(&row.Key, &row.Result, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return DetectionRow{}, false, nil
	case err != nil:
		return DetectionRow{}, false, fmt.Errorf("read detection: %w", err)
	}

	ts, parseErr := time.Parse(time.RFC3339Nano, createdAt)
	if parseErr != nil {
		// Unparseable timestamp: treat the row as absent and drop it.
		_ = s.DeleteDetection(ctx, key)
		return DetectionRow{}, false, nil
	}
	row.CreatedAt = ts
	return row, true, nil
}

// PutDetection inserts or overwrites a cached detection. Last write wins.
func (s *Store) PutDetection(ctx context.Context, key string, result int, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO detections (key, result, created_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET result = excluded.result, created_at = excluded.created_at`,
		key, result, createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write detection: %w", err)
	}
	return nil
}

// DeleteDetection removes one cached detection.
func (s *Store) DeleteDetection(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM detections WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete detection: %w", err)
	}
	return nil
}

// DeleteDetectionsBefore removes all detections created before the cutoff and
// returns how many were removed.
func (s *Store) DeleteDetectionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM detections WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep detections: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// PurgeDetections removes every cached detection.
func (s *Store) PurgeDetections(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM detections")
	if err != nil {
		return 0, fmt.Errorf("purge detections: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// CountDetections returns the number of cached detections.
func (s *Store) CountDetections(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM detections").Scan(&count); err != nil {
		return 0, fmt.Errorf("count detections: %w", err)
	}
	return count, nil
}

// MetaValue reads a metadata entry such as the recorded classifier version.
func (s *Store) MetaValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("read meta: %w", err)
	}
	return value, true, nil
}

// SetMetaValue writes a metadata entry.
func (s *Store) SetMetaValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}
