package config

const (
	defaultDownloadDir     = "~/.local/share/stemsense/downloads"
	defaultStemsDir        = "~/.local/share/stemsense/stems"
	defaultExportDir       = "~/.local/share/stemsense/exports"
	defaultLogDir          = "~/.local/share/stemsense/logs"
	defaultBucketDir       = "~/.local/share/stemsense/bucket"
	defaultAPIBind         = "127.0.0.1:8000"
	defaultURLTTLMinutes   = 15
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultYtDlpBinary     = "yt-dlp"
	defaultDemucsBinary    = "demucs"
	defaultDemucsModel     = "htdemucs"
	defaultAnalyzerBinary  = "stemsense-analyze"
	defaultDownloadRetries = 3
	defaultNotifyTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StemsDir:    defaultStemsDir,
			ExportDir:   defaultExportDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Storage: Storage{
			BucketDir:     defaultBucketDir,
			URLTTLMinutes: defaultURLTTLMinutes,
		},
		Tools: Tools{
			YtDlpBinary:     defaultYtDlpBinary,
			DemucsBinary:    defaultDemucsBinary,
			DemucsModel:     defaultDemucsModel,
			AnalyzerBinary:  defaultAnalyzerBinary,
			DownloadRetries: defaultDownloadRetries,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
