package config

const (
	defaultConfigPath              = "~/.config/submux/config.toml"
	defaultDownloadDir             = "~/.local/share/submux/downloads"
	defaultStateDir                = "~/.local/share/submux"
	defaultLogDir                  = "~/.local/share/submux/logs"
	defaultOutboxDir               = "~/.local/share/submux/outbox"
	defaultFFmpegBinary            = "ffmpeg"
	defaultFontPath                = "~/.local/share/submux/fonts/HelveticaRounded-Bold.ttf"
	defaultFontName                = "HelveticaRounded-Bold"
	defaultFontColor               = "&H00FFFFFF"
	defaultBorderWidth             = "1.5"
	defaultProgressIntervalSeconds = 10
	defaultCRF                     = 23
	defaultPreset                  = "ultrafast"
	defaultCodec                   = "libx264"
	defaultFontSize                = 20
	defaultResolution              = "1280x720"
	defaultMaxConcurrentJobs       = 2
	defaultErrorTailChars          = 3000
	maxErrorTailChars              = 3000
	defaultMaxURLBytes             = 2_000_000_000
	defaultURLTimeoutSeconds       = 1800
	defaultMinFreeGiB              = 2
	defaultStaleHours              = 24
	defaultRetryDelaySeconds       = 5
	defaultAPIBind                 = "127.0.0.1:7490"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	defaultNotifyRequestTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			OutboxDir:   defaultOutboxDir,
		},
		Encoder: Encoder{
			FFmpegBinary:            defaultFFmpegBinary,
			FontPath:                defaultFontPath,
			FontName:                defaultFontName,
			FontColor:               defaultFontColor,
			BorderWidth:             defaultBorderWidth,
			ProgressIntervalSeconds: defaultProgressIntervalSeconds,
		},
		Defaults: Defaults{
			CRF:        defaultCRF,
			Preset:     defaultPreset,
			Codec:      defaultCodec,
			FontSize:   defaultFontSize,
			Resolution: defaultResolution,
		},
		Jobs: Jobs{
			MaxConcurrent:  defaultMaxConcurrentJobs,
			ErrorTailChars: defaultErrorTailChars,
		},
		Intake: Intake{
			MaxURLBytes:       defaultMaxURLBytes,
			URLTimeoutSeconds: defaultURLTimeoutSeconds,
			MinFreeGiB:        defaultMinFreeGiB,
			StaleHours:        defaultStaleHours,
		},
		Transport: Transport{
			RetryDelaySeconds: defaultRetryDelaySeconds,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
