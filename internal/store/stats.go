package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const statTotalFiltered = "total_filtered"

// TotalFiltered returns the lifetime count of suppressed items.
func (s *Store) TotalFiltered(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM stats WHERE key = ?", statTotalFiltered,
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read stats: %w", err)
	}
	return value, nil
}

// AddFiltered increments the suppressed item counter by n. Batch runs call
// this once per run rather than per item.
func (s *Store) AddFiltered(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stats (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`,
		statTotalFiltered, n,
	)
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	return nil
}
