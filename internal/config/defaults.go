package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	defaultAPIBind            = "127.0.0.1:7519"
	defaultFeedPollInterval   = 60
	defaultFeedRequestTimeout = 30
	defaultProtectedLanguage  = "uk"
	defaultSuppressedLanguage = "ru"
	defaultOracleTimeout      = 10
	defaultMutationDebounceMS = 300
	defaultPageSettleMS       = 500
	defaultFollowupDelayMS    = 200
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

func defaultStateDir() string {
	return filepath.Join(xdg.StateHome, "feedsift")
}

func defaultLogDir() string {
	return filepath.Join(xdg.StateHome, "feedsift", "logs")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir(),
			LogDir:   defaultLogDir(),
			APIBind:  defaultAPIBind,
		},
		Feed: Feed{
			PollInterval:   defaultFeedPollInterval,
			RequestTimeout: defaultFeedRequestTimeout,
		},
		Classifier: Classifier{
			ProtectedLanguage:  defaultProtectedLanguage,
			SuppressedLanguage: defaultSuppressedLanguage,
		},
		Oracle: Oracle{
			RequestTimeout: defaultOracleTimeout,
		},
		Scheduler: Scheduler{
			MutationDebounceMS: defaultMutationDebounceMS,
			PageSettleMS:       defaultPageSettleMS,
			FollowupDelayMS:    defaultFollowupDelayMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
