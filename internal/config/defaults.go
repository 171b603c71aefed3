package config

const (
	defaultDataDir   = "~/.local/share/songreel"
	defaultClipDir   = "~/.local/share/songreel/clips"
	defaultOutputDir = "~/.local/share/songreel/output"
	defaultLogDir    = "~/.local/share/songreel/logs"

	defaultPollInterval       = 300
	defaultBatchSize          = 5
	defaultErrorRetryInterval = 30

	defaultScriptGenBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultScriptGenModel   = "gpt-4o"
	defaultScriptGenTimeout = 120

	defaultVideoGenBaseURL         = "https://api.dev.runwayml.com/v1"
	defaultVideoGenModel           = "gen3a_turbo"
	defaultVideoGenPollInterval    = 10
	defaultVideoGenPollTimeout     = 600
	defaultVideoGenAspectRatio     = "1280:768"
	defaultVideoGenMaxClipSeconds  = 8
	defaultVideoGenStylePrefix     = "anime style, 2D cartoon animation, Japanese anime"
	defaultVideoGenNegativePrompt  = "realistic, photorealistic, live action, blurry, distorted"
	defaultVideoGenDownloadTimeout = 300

	defaultFFmpegBinary    = "ffmpeg"
	defaultDownloadTimeout = 300

	defaultUploadProvider = "local"
	defaultUploadTimeout  = 120

	defaultCharacter        = "Yona"
	defaultReuseThreshold   = 0.3
	defaultDiversityPenalty = 0.15
	defaultDiversityCap     = 0.6
	defaultCharacterWeight  = 0.3
	defaultActionWeight     = 0.4
	defaultSettingWeight    = 0.2
	defaultDetailWeight     = 0.1

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ClipDir:   defaultClipDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			BatchSize:          defaultBatchSize,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		ScriptGen: ScriptGen{
			BaseURL:        defaultScriptGenBaseURL,
			Model:          defaultScriptGenModel,
			TimeoutSeconds: defaultScriptGenTimeout,
		},
		VideoGen: VideoGen{
			BaseURL:         defaultVideoGenBaseURL,
			Model:           defaultVideoGenModel,
			PollInterval:    defaultVideoGenPollInterval,
			PollTimeout:     defaultVideoGenPollTimeout,
			AspectRatio:     defaultVideoGenAspectRatio,
			MaxClipSeconds:  defaultVideoGenMaxClipSeconds,
			StylePrefix:     defaultVideoGenStylePrefix,
			NegativePrompt:  defaultVideoGenNegativePrompt,
			DownloadTimeout: defaultVideoGenDownloadTimeout,
		},
		Stitching: Stitching{
			FFmpegBinary:    defaultFFmpegBinary,
			DownloadTimeout: defaultDownloadTimeout,
		},
		Upload: Upload{
			Provider:       defaultUploadProvider,
			TimeoutSeconds: defaultUploadTimeout,
		},
		Matching: Matching{
			Enabled:          true,
			Character:        defaultCharacter,
			ReuseThreshold:   defaultReuseThreshold,
			DiversityPenalty: defaultDiversityPenalty,
			DiversityCap:     defaultDiversityCap,
			CharacterWeight:  defaultCharacterWeight,
			ActionWeight:     defaultActionWeight,
			SettingWeight:    defaultSettingWeight,
			DetailWeight:     defaultDetailWeight,
		},
		Resilience: Resilience{
			ScriptGen: RetrySettings{
				MaxAttempts:      3,
				InitialDelay:     2,
				BackoffFactor:    2.0,
				FailureThreshold: 5,
				ResetTimeout:     300,
			},
			VideoGen: RetrySettings{
				MaxAttempts:      3,
				InitialDelay:     5,
				BackoffFactor:    2.0,
				FailureThreshold: 3,
				ResetTimeout:     600,
			},
			Upload: RetrySettings{
				MaxAttempts:      3,
				InitialDelay:     2,
				BackoffFactor:    2.0,
				FailureThreshold: 3,
				ResetTimeout:     300,
			},
			Store: RetrySettings{
				MaxAttempts:   3,
				InitialDelay:  1,
				BackoffFactor: 2.0,
			},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Songs:          true,
			Queue:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
