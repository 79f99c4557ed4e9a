package config

const (
	defaultWorkDir           = "~/.local/share/mashup/work"
	defaultResultsDir        = "~/.local/share/mashup/results"
	defaultStateDir          = "~/.local/share/mashup/state"
	defaultAPIBind           = "127.0.0.1:8080"
	defaultYouTubeBaseURL    = "https://www.googleapis.com/youtube/v3"
	defaultRelevanceLanguage = "en"
	defaultSearchTimeout     = 15
	defaultYtdlpBinary       = "yt-dlp"
	defaultYtdlpFormat       = "bestaudio[ext=m4a]/bestaudio/best"
	defaultDownloadTimeout   = 300
	defaultSocketTimeout     = 10
	defaultRetries           = 2
	defaultParallelDownloads = 3
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultAudioCodec        = "libmp3lame"
	defaultAudioBitrate      = "192k"
	defaultSampleRate        = 44100
	defaultVideoWidth        = 1280
	defaultVideoHeight       = 720
	defaultVideoFPS          = 1
	defaultBackgroundColor   = "0x0EA5E9"
	defaultMaxCount          = 50
	defaultMaxClipSeconds    = 300
	defaultSMTPPort          = 587
	defaultSMTPTLSPolicy     = "mandatory"
	defaultSMTPTimeout       = 30
	defaultNtfyTimeout       = 10
	defaultMaxConcurrentJobs = 2
	defaultLogFormat         = "auto"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    defaultWorkDir,
			ResultsDir: defaultResultsDir,
			StateDir:   defaultStateDir,
			APIBind:    defaultAPIBind,
		},
		Search: Search{
			BaseURL:           defaultYouTubeBaseURL,
			RelevanceLanguage: defaultRelevanceLanguage,
			RequestTimeout:    defaultSearchTimeout,
			YtdlpBinary:       defaultYtdlpBinary,
			YtdlpFormat:       defaultYtdlpFormat,
			DownloadTimeout:   defaultDownloadTimeout,
			SocketTimeout:     defaultSocketTimeout,
			Retries:           defaultRetries,
			ParallelDownloads: defaultParallelDownloads,
		},
		Media: Media{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			AudioCodec:      defaultAudioCodec,
			AudioBitrate:    defaultAudioBitrate,
			SampleRate:      defaultSampleRate,
			VideoWidth:      defaultVideoWidth,
			VideoHeight:     defaultVideoHeight,
			VideoFPS:        defaultVideoFPS,
			BackgroundColor: defaultBackgroundColor,
		},
		Limits: Limits{
			MaxCount:       defaultMaxCount,
			MaxClipSeconds: defaultMaxClipSeconds,
		},
		SMTP: SMTP{
			Port:      defaultSMTPPort,
			TLSPolicy: defaultSMTPTLSPolicy,
			Timeout:   defaultSMTPTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Workflow: Workflow{
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
