// Package config loads, normalizes, and validates feedsift configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and resolves XDG state and log directories.
// The Config type centralizes every knob the daemon and CLI need: feed
// sources, the language pair, oracle endpoint, scheduler timing, and the API
// bind address.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
