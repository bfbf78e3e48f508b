package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Settings holds the user-facing toggles read by the scheduler.
type Settings struct {
	Enabled bool
}

const settingEnabled = "enabled"

// Settings returns the persisted settings. Filtering defaults to enabled when
// no value has been written yet.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	settings := Settings{Enabled: true}

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", settingEnabled,
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return settings, nil
	case err != nil:
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	enabled, parseErr := strconv.ParseBool(value)
	if parseErr != nil {
		return settings, nil
	}
	settings.Enabled = enabled
	return settings, nil
}

// SetEnabled persists the enabled flag and notifies listeners.
func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingEnabled, strconv.FormatBool(enabled),
	)
	if err != nil {
		return fmt.Errorf("write enabled setting: %w", err)
	}
	s.notify(Change{Area: AreaSettings, Field: FieldEnabled})
	return nil
}
