package config

const (
	defaultWorkDir              = "~/.local/share/vr180/work"
	defaultUploadDir            = "~/.local/share/vr180/uploads"
	defaultLogDir               = "~/.local/share/vr180/logs"
	defaultAPIBind              = "127.0.0.1:7488"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultDepthAnalysisMS      = 1000
	defaultQualityEnhancementMS = 1500
	defaultHeartbeatIntervalMS  = 1000
	defaultHeartbeatStep        = 5
	defaultUploadMaxBytes       = 500 * 1024 * 1024
	defaultStoreBackend         = StoreBackendMemory
	defaultSQLiteFile           = "jobs.db"
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

var defaultAllowedExtensions = []string{".mp4", ".mov", ".avi"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			UploadDir: defaultUploadDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Tools: Tools{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Pipeline: Pipeline{
			DepthAnalysisMS:      defaultDepthAnalysisMS,
			QualityEnhancementMS: defaultQualityEnhancementMS,
			HeartbeatIntervalMS:  defaultHeartbeatIntervalMS,
			HeartbeatStep:        defaultHeartbeatStep,
		},
		Upload: Upload{
			MaxBytes:          defaultUploadMaxBytes,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Store: Store{
			Backend: defaultStoreBackend,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
