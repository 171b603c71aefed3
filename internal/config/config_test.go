package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"songreel/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	t.Setenv("SONGREEL_SCRIPTGEN_API_KEY", "script-key")
	t.Setenv("SONGREEL_VIDEOGEN_API_KEY", "video-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "songreel")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.ClipDir != filepath.Join(wantData, "clips") {
		t.Fatalf("unexpected clip dir: %q", cfg.Paths.ClipDir)
	}
	if cfg.ScriptGen.APIKey != "script-key" {
		t.Fatalf("expected scriptgen key from env, got %q", cfg.ScriptGen.APIKey)
	}
	if cfg.VideoGen.APIKey != "video-key" {
		t.Fatalf("expected videogen key from env, got %q", cfg.VideoGen.APIKey)
	}
	if cfg.Workflow.PollInterval != 300 || cfg.Workflow.BatchSize != 5 {
		t.Fatalf("unexpected workflow defaults: %+v", cfg.Workflow)
	}
	if cfg.VideoGen.MaxClipSeconds != 8 {
		t.Fatalf("unexpected max clip seconds: %d", cfg.VideoGen.MaxClipSeconds)
	}
	if cfg.Matching.Character != "Yona" {
		t.Fatalf("unexpected default character: %q", cfg.Matching.Character)
	}
	if cfg.Resilience.VideoGen.FailureThreshold != 3 || cfg.Resilience.VideoGen.ResetTimeout != 600 {
		t.Fatalf("unexpected videogen resilience defaults: %+v", cfg.Resilience.VideoGen)
	}
	if cfg.Resilience.Store.FailureThreshold != 0 {
		t.Fatalf("store guard must not carry a breaker, got %+v", cfg.Resilience.Store)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "songreel.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.ClipDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "songreel.toml")

	type payload struct {
		ScriptGen struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"scriptgen"`
		VideoGen struct {
			APIKey  string `toml:"api_key"`
			BaseURL string `toml:"base_url"`
		} `toml:"videogen"`
		Upload struct {
			Provider string `toml:"provider"`
			Dir      string `toml:"dir"`
		} `toml:"upload"`
		Workflow struct {
			PollInterval int `toml:"poll_interval"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.ScriptGen.APIKey = "abc123"
	custom.ScriptGen.Model = "custom-model"
	custom.VideoGen.APIKey = "vid456"
	custom.VideoGen.BaseURL = "https://example.com/videogen/"
	custom.Upload.Provider = "local"
	custom.Upload.Dir = filepath.Join(tempDir, "delivery")
	custom.Workflow.PollInterval = 60

	encoded, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(configPath, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.ScriptGen.Model != "custom-model" {
		t.Fatalf("unexpected model %q", cfg.ScriptGen.Model)
	}
	if cfg.VideoGen.BaseURL != "https://example.com/videogen" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.VideoGen.BaseURL)
	}
	if cfg.Workflow.PollInterval != 60 {
		t.Fatalf("unexpected poll interval %d", cfg.Workflow.PollInterval)
	}
	if cfg.Workflow.BatchSize != 5 {
		t.Fatalf("expected default batch size to survive partial config, got %d", cfg.Workflow.BatchSize)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.ScriptGen.APIKey = "k"
		cfg.VideoGen.APIKey = "k"
		cfg.Upload.Dir = "/tmp/songreel-delivery"
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{
			name:    "missing scriptgen key",
			mutate:  func(c *config.Config) { c.ScriptGen.APIKey = "" },
			wantSub: "scriptgen.api_key",
		},
		{
			name:    "bad upload provider",
			mutate:  func(c *config.Config) { c.Upload.Provider = "ftp" },
			wantSub: "upload.provider",
		},
		{
			name:    "http provider without endpoint",
			mutate:  func(c *config.Config) { c.Upload.Provider = "http"; c.Upload.Endpoint = "" },
			wantSub: "upload.endpoint",
		},
		{
			name:    "weight out of range",
			mutate:  func(c *config.Config) { c.Matching.ActionWeight = 1.5 },
			wantSub: "matching.action_weight",
		},
		{
			name:    "bad aspect ratio",
			mutate:  func(c *config.Config) { c.VideoGen.AspectRatio = "wide" },
			wantSub: "videogen.aspect_ratio",
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "verbose" },
			wantSub: "logging.level",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantSub, err)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.toml")

	if err := config.WriteSample(path, false); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path, false); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if err := config.WriteSample(path, true); err != nil {
		t.Fatalf("forced WriteSample failed: %v", err)
	}
}
