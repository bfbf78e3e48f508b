package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateOracle(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateFeed() error {
	for _, src := range c.Feed.Sources {
		parsed, err := url.Parse(src)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("feed.sources entry %q is not a valid URL", src)
		}
	}
	if c.Feed.PollInterval <= 0 {
		return errors.New("feed.poll_interval must be positive")
	}
	if c.Feed.RequestTimeout <= 0 {
		return errors.New("feed.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.ProtectedLanguage == "" {
		return errors.New("classifier.protected_language must be set")
	}
	if c.Classifier.SuppressedLanguage == "" {
		return errors.New("classifier.suppressed_language must be set")
	}
	if c.Classifier.ProtectedLanguage == c.Classifier.SuppressedLanguage {
		return errors.New("classifier.protected_language and classifier.suppressed_language must differ")
	}
	return nil
}

func (c *Config) validateOracle() error {
	if c.Oracle.Endpoint != "" {
		parsed, err := url.Parse(c.Oracle.Endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("oracle.endpoint %q is not a valid URL", c.Oracle.Endpoint)
		}
	}
	if c.Oracle.RequestTimeout <= 0 {
		return errors.New("oracle.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.MutationDebounceMS <= 0 {
		return errors.New("scheduler.mutation_debounce_ms must be positive")
	}
	if c.Scheduler.PageSettleMS <= 0 {
		return errors.New("scheduler.page_settle_ms must be positive")
	}
	if c.Scheduler.FollowupDelayMS <= 0 {
		return errors.New("scheduler.followup_delay_ms must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
