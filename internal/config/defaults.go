package config

const (
	defaultDataDir          = "~/.local/share/caseflow"
	defaultLogDir           = "~/.local/share/caseflow/logs"
	defaultAPIBind          = "127.0.0.1:7512"
	defaultDatabaseBackend  = "sqlite"
	defaultBlobRegion       = "us-west-004"
	defaultBlobTimeout      = 60
	defaultDatasetEndpoint  = "https://huggingface.co"
	defaultDatasetBranch    = "main"
	defaultDatasetTimeout   = 120
	defaultCaptionerBaseURL = "https://router.huggingface.co/v1/chat/completions"
	defaultCaptionerModel   = "Qwen/Qwen2.5-VL-72B-Instruct"
	defaultCaptionerLocale  = "en"
	defaultCaptionerTimeout = 120
	defaultCaptionerRetries = 3
	defaultConvertMaxWidth  = 1600
	defaultConvertMaxHeight = 1600
	defaultConvertQuality   = 85
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultPollInterval     = 5
	defaultErrorRetry       = 30
	defaultHeartbeatSecs    = 15
	defaultHeartbeatTimeout = 120
	defaultBatchSize        = 10
	defaultAssetWorkers     = 4
	defaultMonitorInterval  = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Database: Database{
			Backend: defaultDatabaseBackend,
		},
		Blob: Blob{
			Region:         defaultBlobRegion,
			ForcePathStyle: true,
			TimeoutSeconds: defaultBlobTimeout,
		},
		Dataset: Dataset{
			Enabled:        true,
			Endpoint:       defaultDatasetEndpoint,
			Branch:         defaultDatasetBranch,
			TimeoutSeconds: defaultDatasetTimeout,
		},
		Captioner: Captioner{
			BaseURL:        defaultCaptionerBaseURL,
			Model:          defaultCaptionerModel,
			Locale:         defaultCaptionerLocale,
			TimeoutSeconds: defaultCaptionerTimeout,
			MaxRetries:     defaultCaptionerRetries,
		},
		Convert: Convert{
			MaxWidth:  defaultConvertMaxWidth,
			MaxHeight: defaultConvertMaxHeight,
			Quality:   defaultConvertQuality,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetry,
			HeartbeatInterval:  defaultHeartbeatSecs,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			BatchSize:          defaultBatchSize,
			AssetWorkers:       defaultAssetWorkers,
			MonitorInterval:    defaultMonitorInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
