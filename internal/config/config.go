package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for daemon operation.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	ClipDir   string `toml:"clip_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	BatchSize          int `toml:"batch_size"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// ScriptGen contains configuration for the scene script generation API.
type ScriptGen struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// VideoGen contains configuration for the clip generation API.
type VideoGen struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	Model           string `toml:"model"`
	PollInterval    int    `toml:"poll_interval"`
	PollTimeout     int    `toml:"poll_timeout"`
	AspectRatio     string `toml:"aspect_ratio"`
	MaxClipSeconds  int    `toml:"max_clip_seconds"`
	StylePrefix     string `toml:"style_prefix"`
	NegativePrompt  string `toml:"negative_prompt"`
	ReferenceImage  string `toml:"reference_image"`
	DownloadTimeout int    `toml:"download_timeout"`
}

// Stitching contains configuration for clip concatenation and audio muxing.
type Stitching struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	DownloadTimeout int    `toml:"download_timeout"`
}

// Upload contains configuration for delivering finished videos.
type Upload struct {
	Provider string `toml:"provider"`
	// Local provider settings.
	Dir     string `toml:"dir"`
	BaseURL string `toml:"base_url"`
	// HTTP provider settings.
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Matching contains configuration for catalog clip reuse.
type Matching struct {
	Enabled          bool    `toml:"enabled"`
	Character        string  `toml:"character"`
	ReuseThreshold   float64 `toml:"reuse_threshold"`
	DiversityPenalty float64 `toml:"diversity_penalty"`
	DiversityCap     float64 `toml:"diversity_cap"`
	CharacterWeight  float64 `toml:"character_weight"`
	ActionWeight     float64 `toml:"action_weight"`
	SettingWeight    float64 `toml:"setting_weight"`
	DetailWeight     float64 `toml:"detail_weight"`
}

// RetrySettings configures the retry and breaker policy for one external
// collaborator. A zero FailureThreshold disables the circuit breaker.
type RetrySettings struct {
	MaxAttempts      int     `toml:"max_attempts"`
	InitialDelay     int     `toml:"initial_delay"`
	BackoffFactor    float64 `toml:"backoff_factor"`
	FailureThreshold int     `toml:"failure_threshold"`
	ResetTimeout     int     `toml:"reset_timeout"`
}

// Resilience groups the per-collaborator retry and breaker settings.
type Resilience struct {
	ScriptGen RetrySettings `toml:"scriptgen"`
	VideoGen  RetrySettings `toml:"videogen"`
	Upload    RetrySettings `toml:"upload"`
	Store     RetrySettings `toml:"store"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Songs          bool   `toml:"songs"`
	Queue          bool   `toml:"queue"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Songreel.
//
// Configuration sections by subsystem:
//   - Paths: data, clip, output, and log directories
//   - Workflow: daemon polling interval and batch size
//   - ScriptGen: scene script generation API
//   - VideoGen: clip generation API and task polling
//   - Stitching: ffmpeg concatenation and audio muxing
//   - Upload: finished video delivery (local or http)
//   - Matching: catalog clip reuse scoring
//   - Resilience: per-collaborator retry and circuit breaker policies
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workflow      Workflow      `toml:"workflow"`
	ScriptGen     ScriptGen     `toml:"scriptgen"`
	VideoGen      VideoGen      `toml:"videogen"`
	Stitching     Stitching     `toml:"stitching"`
	Upload        Upload        `toml:"upload"`
	Matching      Matching      `toml:"matching"`
	Resilience    Resilience    `toml:"resilience"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/songreel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("songreel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.ClipDir, c.Paths.OutputDir, c.Paths.LogDir}
	if c.Upload.Provider == "local" && strings.TrimSpace(c.Upload.Dir) != "" {
		dirs = append(dirs, c.Upload.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the queue database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "songreel.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file unless force is set.
func WriteSample(path string, force bool) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(expanded); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", expanded)
		}
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
