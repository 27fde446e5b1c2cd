package config

const (
	defaultDataDir             = "~/.local/share/plix"
	defaultLogDir              = "~/.local/share/plix/logs"
	defaultTMDBBaseURL         = "https://api.themoviedb.org/3"
	defaultTMDBLanguage        = "en-US"
	defaultTMDBAuthMode        = "query"
	defaultTMDBRequestTimeout  = 10
	defaultCacheMinutes        = 5
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		TMDB: TMDB{
			BaseURL:        defaultTMDBBaseURL,
			Language:       defaultTMDBLanguage,
			AuthMode:       defaultTMDBAuthMode,
			RequestTimeout: defaultTMDBRequestTimeout,
		},
		Library: Library{
			CacheMinutes: defaultCacheMinutes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Ingest:         true,
			Errors:         true,
			Unidentified:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
