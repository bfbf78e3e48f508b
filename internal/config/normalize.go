package config

import (
	"fmt"
	"strings"
)

// normalize expands paths and trims string fields in place.
func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	sources := make([]string, 0, len(c.Feed.Sources))
	seen := make(map[string]struct{}, len(c.Feed.Sources))
	for _, src := range c.Feed.Sources {
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		sources = append(sources, trimmed)
	}
	c.Feed.Sources = sources

	c.Classifier.ProtectedLanguage = strings.ToLower(strings.TrimSpace(c.Classifier.ProtectedLanguage))
	c.Classifier.SuppressedLanguage = strings.ToLower(strings.TrimSpace(c.Classifier.SuppressedLanguage))

	c.Oracle.Endpoint = strings.TrimSpace(c.Oracle.Endpoint)
	c.Oracle.APIKey = strings.TrimSpace(c.Oracle.APIKey)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	return nil
}
