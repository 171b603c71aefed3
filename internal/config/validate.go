package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateScriptGen(); err != nil {
		return err
	}
	if err := c.validateVideoGen(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.batch_size":           c.Workflow.BatchSize,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateScriptGen() error {
	if c.ScriptGen.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/songreel/config.toml"
		}
		return fmt.Errorf("scriptgen.api_key is required. Set SONGREEL_SCRIPTGEN_API_KEY env var or edit %s (create with 'songreel config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateVideoGen() error {
	if c.VideoGen.APIKey == "" {
		return errors.New("videogen.api_key is required. Set SONGREEL_VIDEOGEN_API_KEY env var or edit the config file")
	}
	if !strings.Contains(c.VideoGen.AspectRatio, ":") {
		return fmt.Errorf("videogen.aspect_ratio %q must be width:height", c.VideoGen.AspectRatio)
	}
	return ensurePositiveMap(map[string]int{
		"videogen.poll_interval":    c.VideoGen.PollInterval,
		"videogen.poll_timeout":     c.VideoGen.PollTimeout,
		"videogen.max_clip_seconds": c.VideoGen.MaxClipSeconds,
	})
}

func (c *Config) validateUpload() error {
	switch c.Upload.Provider {
	case "local":
		if strings.TrimSpace(c.Upload.Dir) == "" {
			return errors.New("upload.dir must be set when upload.provider is \"local\"")
		}
	case "http":
		if strings.TrimSpace(c.Upload.Endpoint) == "" {
			return errors.New("upload.endpoint must be set when upload.provider is \"http\"")
		}
	default:
		return fmt.Errorf("upload.provider %q must be \"local\" or \"http\"", c.Upload.Provider)
	}
	return nil
}

func (c *Config) validateMatching() error {
	fractions := map[string]float64{
		"matching.reuse_threshold":   c.Matching.ReuseThreshold,
		"matching.diversity_penalty": c.Matching.DiversityPenalty,
		"matching.diversity_cap":     c.Matching.DiversityCap,
		"matching.character_weight":  c.Matching.CharacterWeight,
		"matching.action_weight":     c.Matching.ActionWeight,
		"matching.setting_weight":    c.Matching.SettingWeight,
		"matching.detail_weight":     c.Matching.DetailWeight,
	}
	for key, value := range fractions {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be \"console\" or \"json\"", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
