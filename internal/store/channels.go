package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrChannelNotFound reports a removal of a channel that is on neither list.
var ErrChannelNotFound = errors.New("channel not listed")

// Channel states. A channel name is in at most one list at a time.
const (
	StateAllowed = "allowed"
	StateBlocked = "blocked"
)

// Channel is one allow/block list entry.
type Channel struct {
	Name      string
	State     string
	UpdatedAt time.Time
}

// ChannelListing is a point-in-time snapshot of both lists. Decision logic
// operates on snapshots so one batch run sees a consistent policy.
type ChannelListing struct {
	Allowed map[string]struct{}
	Blocked map[string]struct{}
}

// IsAllowed reports whether name is on the allow list.
func (l ChannelListing) IsAllowed(name string) bool {
	_, ok := l.Allowed[name]
	return ok
}

// IsBlocked reports whether name is on the block list.
func (l ChannelListing) IsBlocked(name string) bool {
	_, ok := l.Blocked[name]
	return ok
}

// ChannelListing returns a snapshot of the allow and block lists.
func (s *Store) ChannelListing(ctx context.Context) (ChannelListing, error) {
	listing := ChannelListing{
		Allowed: make(map[string]struct{}),
		Blocked: make(map[string]struct{}),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name, state FROM channels")
	if err != nil {
		return ChannelListing{}, fmt.Errorf("read channels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, state string
		if err := rows.Scan(&name, &state); err != nil {
			return ChannelListing{}, fmt.Errorf("scan channel: %w", err)
		}
		switch state {
		case StateAllowed:
			listing.Allowed[name] = struct{}{}
		case StateBlocked:
			listing.Blocked[name] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return ChannelListing{}, fmt.Errorf("iterate channels: %w", err)
	}
	return listing, nil
}

// Channels returns all list entries, newest first, for management surfaces.
func (s *Store) Channels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, state, updated_at FROM channels ORDER BY updated_at DESC, name ASC")
	if err != nil {
		return nil, fmt.Errorf("read channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		var updatedAt string
		if err := rows.Scan(&ch.Name, &ch.State, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
			ch.UpdatedAt = ts
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// AllowChannel puts the channel on the allow list, removing it from the block
// list if present.
func (s *Store) AllowChannel(ctx context.Context, name string) error {
	return s.setChannelState(ctx, name, StateAllowed)
}

// BlockChannel puts the channel on the block list, removing it from the allow
// list if present.
func (s *Store) BlockChannel(ctx context.Context, name string) error {
	return s.setChannelState(ctx, name, StateBlocked)
}

func (s *Store) setChannelState(ctx context.Context, name, state string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("channel name cannot be empty")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (name, state, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		name, state, timestamp,
	)
	if err != nil {
		return fmt.Errorf("set channel state: %w", err)
	}
	s.notify(Change{Area: AreaChannels, Field: FieldListing})
	return nil
}

// RemoveChannel drops the channel from whichever list holds it.
func (s *Store) RemoveChannel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("channel name cannot be empty")
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM channels WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("remove channel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("channel %q: %w", name, ErrChannelNotFound)
	}
	s.notify(Change{Area: AreaChannels, Field: FieldListing})
	return nil
}
