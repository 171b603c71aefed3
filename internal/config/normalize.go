package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScriptGen()
	c.normalizeVideoGen()
	c.normalizeStitching()
	if err := c.normalizeUpload(); err != nil {
		return err
	}
	c.normalizeMatching()
	c.normalizeResilience()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ClipDir) == "" {
		c.Paths.ClipDir = defaultClipDir
	}
	if c.Paths.ClipDir, err = expandPath(c.Paths.ClipDir); err != nil {
		return fmt.Errorf("paths.clip_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScriptGen() {
	if c.ScriptGen.APIKey == "" {
		if value, ok := os.LookupEnv("SONGREEL_SCRIPTGEN_API_KEY"); ok {
			c.ScriptGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.ScriptGen.BaseURL = strings.TrimSpace(c.ScriptGen.BaseURL)
	if c.ScriptGen.BaseURL == "" {
		c.ScriptGen.BaseURL = defaultScriptGenBaseURL
	}
	if c.ScriptGen.Model == "" {
		c.ScriptGen.Model = defaultScriptGenModel
	}
	if c.ScriptGen.TimeoutSeconds <= 0 {
		c.ScriptGen.TimeoutSeconds = defaultScriptGenTimeout
	}
}

func (c *Config) normalizeVideoGen() {
	if c.VideoGen.APIKey == "" {
		if value, ok := os.LookupEnv("SONGREEL_VIDEOGEN_API_KEY"); ok {
			c.VideoGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.VideoGen.BaseURL = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(c.VideoGen.BaseURL), "/"))
	if c.VideoGen.BaseURL == "" {
		c.VideoGen.BaseURL = defaultVideoGenBaseURL
	}
	if c.VideoGen.Model == "" {
		c.VideoGen.Model = defaultVideoGenModel
	}
	if c.VideoGen.PollInterval <= 0 {
		c.VideoGen.PollInterval = defaultVideoGenPollInterval
	}
	if c.VideoGen.PollTimeout <= 0 {
		c.VideoGen.PollTimeout = defaultVideoGenPollTimeout
	}
	if c.VideoGen.AspectRatio == "" {
		c.VideoGen.AspectRatio = defaultVideoGenAspectRatio
	}
	if c.VideoGen.MaxClipSeconds <= 0 {
		c.VideoGen.MaxClipSeconds = defaultVideoGenMaxClipSeconds
	}
	if c.VideoGen.DownloadTimeout <= 0 {
		c.VideoGen.DownloadTimeout = defaultVideoGenDownloadTimeout
	}
}

func (c *Config) normalizeStitching() {
	if strings.TrimSpace(c.Stitching.FFmpegBinary) == "" {
		c.Stitching.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Stitching.DownloadTimeout <= 0 {
		c.Stitching.DownloadTimeout = defaultDownloadTimeout
	}
}

func (c *Config) normalizeUpload() error {
	c.Upload.Provider = strings.ToLower(strings.TrimSpace(c.Upload.Provider))
	if c.Upload.Provider == "" {
		c.Upload.Provider = defaultUploadProvider
	}
	if c.Upload.APIKey == "" {
		if value, ok := os.LookupEnv("SONGREEL_UPLOAD_API_KEY"); ok {
			c.Upload.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Upload.TimeoutSeconds <= 0 {
		c.Upload.TimeoutSeconds = defaultUploadTimeout
	}
	if c.Upload.Dir != "" {
		var err error
		if c.Upload.Dir, err = expandPath(c.Upload.Dir); err != nil {
			return fmt.Errorf("upload.dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeMatching() {
	if strings.TrimSpace(c.Matching.Character) == "" {
		c.Matching.Character = defaultCharacter
	}
	if c.Matching.ReuseThreshold <= 0 {
		c.Matching.ReuseThreshold = defaultReuseThreshold
	}
	if c.Matching.DiversityPenalty <= 0 {
		c.Matching.DiversityPenalty = defaultDiversityPenalty
	}
	if c.Matching.DiversityCap <= 0 {
		c.Matching.DiversityCap = defaultDiversityCap
	}
	if c.Matching.CharacterWeight <= 0 {
		c.Matching.CharacterWeight = defaultCharacterWeight
	}
	if c.Matching.ActionWeight <= 0 {
		c.Matching.ActionWeight = defaultActionWeight
	}
	if c.Matching.SettingWeight <= 0 {
		c.Matching.SettingWeight = defaultSettingWeight
	}
	if c.Matching.DetailWeight <= 0 {
		c.Matching.DetailWeight = defaultDetailWeight
	}
}

func (c *Config) normalizeResilience() {
	defaults := Default().Resilience
	c.Resilience.ScriptGen = normalizeRetrySettings(c.Resilience.ScriptGen, defaults.ScriptGen)
	c.Resilience.VideoGen = normalizeRetrySettings(c.Resilience.VideoGen, defaults.VideoGen)
	c.Resilience.Upload = normalizeRetrySettings(c.Resilience.Upload, defaults.Upload)
	c.Resilience.Store = normalizeRetrySettings(c.Resilience.Store, defaults.Store)
}

func normalizeRetrySettings(settings, defaults RetrySettings) RetrySettings {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = defaults.MaxAttempts
	}
	if settings.InitialDelay <= 0 {
		settings.InitialDelay = defaults.InitialDelay
	}
	if settings.BackoffFactor < 1 {
		settings.BackoffFactor = defaults.BackoffFactor
	}
	if settings.FailureThreshold > 0 && settings.ResetTimeout <= 0 {
		settings.ResetTimeout = defaults.ResetTimeout
	}
	return settings
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
