// Package videogen drives the asynchronous clip generation API: create a
// task, poll it to completion, download the produced clip. Calls are
// single-shot; retry and circuit breaking live with the caller's resilience
// guard.
package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"songreel/internal/config"
	"songreel/internal/services"
)

// Request carries every generation parameter explicitly. Callers set what
// they need; zero values fall back to configured defaults.
type Request struct {
	Prompt          string
	NegativePrompt  string
	DurationSeconds float64
	AspectRatio     string
	ImageURL        string
	CameraControl   *CameraControl
	CfgScale        float64
	Seed            int64
}

// CameraControl describes simple camera motion for a generated clip.
type CameraControl struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
	Pan        float64 `json:"pan"`
	Tilt       float64 `json:"tilt"`
	Roll       float64 `json:"roll"`
	Zoom       float64 `json:"zoom"`
}

// Task is the server-side generation job.
type Task struct {
	ID       string
	Status   string
	VideoURL string
}

// Client talks to the clip generation API.
type Client struct {
	cfg        config.VideoGen
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. Used in tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how poll waits are performed. Used in tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithClock overrides the poll deadline time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a video generation client.
func New(cfg config.VideoGen, opts ...Option) *Client {
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type taskPayload struct {
	Model    string         `json:"model"`
	TaskType string         `json:"task_type"`
	Input    map[string]any `json:"input"`
}

type taskResponse struct {
	Data struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
		Output struct {
			VideoURL string `json:"video_url"`
		} `json:"output"`
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	} `json:"data"`
	Message string `json:"message"`
}

// CreateTask submits a generation job and returns the pending task.
func (c *Client) CreateTask(ctx context.Context, req Request) (*Task, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("videogen: prompt required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("videogen: api key required")
	}

	prompt := req.Prompt
	if c.cfg.StylePrefix != "" && !strings.HasPrefix(prompt, c.cfg.StylePrefix) {
		prompt = c.cfg.StylePrefix + ", " + prompt
	}
	negative := req.NegativePrompt
	if negative == "" {
		negative = c.cfg.NegativePrompt
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = c.cfg.AspectRatio
	}
	cfgScale := req.CfgScale
	if cfgScale <= 0 || cfgScale > 1 {
		cfgScale = 0.5
	}
	imageURL := req.ImageURL
	if imageURL == "" {
		imageURL = c.cfg.ReferenceImage
	}

	input := map[string]any{
		"prompt":          prompt,
		"negative_prompt": negative,
		"duration":        c.clampDuration(req.DurationSeconds),
		"aspect_ratio":    aspect,
		"cfg_scale":       cfgScale,
	}
	if imageURL != "" {
		input["image_url"] = imageURL
	}
	if req.CameraControl != nil {
		input["camera_control"] = map[string]any{"type": "simple", "config": req.CameraControl}
	}
	if req.Seed > 0 {
		input["seed"] = req.Seed
	}

	payload := taskPayload{Model: c.cfg.Model, TaskType: "video_generation", Input: input}
	decoded, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/task", payload)
	if err != nil {
		return nil, err
	}
	if decoded.Data.TaskID == "" {
		return nil, fmt.Errorf("videogen: create task: missing task id (%s)", decoded.Message)
	}
	return &Task{ID: decoded.Data.TaskID, Status: decoded.Data.Status}, nil
}

// TaskStatus fetches the current state of a generation job.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*Task, error) {
	decoded, err := c.do(ctx, http.MethodGet, c.cfg.BaseURL+"/task/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	task := &Task{
		ID:       taskID,
		Status:   decoded.Data.Status,
		VideoURL: decoded.Data.Output.VideoURL,
	}
	if task.Status == "failed" {
		msg := decoded.Data.Error.Message
		if decoded.Data.Error.Detail != "" {
			msg += ": " + decoded.Data.Error.Detail
		}
		return task, fmt.Errorf("videogen: task %s failed (code %d): %s", taskID, decoded.Data.Error.Code, msg)
	}
	return task, nil
}

// WaitForCompletion polls the task until it completes, fails, or the
// configured poll timeout elapses. Timeouts wrap services.ErrTimeout.
func (c *Client) WaitForCompletion(ctx context.Context, taskID string) (*Task, error) {
	interval := time.Duration(c.cfg.PollInterval) * time.Second
	deadline := c.now().Add(time.Duration(c.cfg.PollTimeout) * time.Second)

	for {
		task, err := c.TaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Status == "completed" {
			if task.VideoURL == "" {
				return nil, fmt.Errorf("videogen: task %s completed without a video url", taskID)
			}
			return task, nil
		}
		if c.now().After(deadline) {
			return nil, fmt.Errorf("%w: videogen task %s still %s after %ds", services.ErrTimeout, taskID, task.Status, c.cfg.PollTimeout)
		}
		if err := c.sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// Download fetches the produced clip into destDir and returns its local path.
func (c *Client) Download(ctx context.Context, task *Task, destDir, filename string) (string, error) {
	if task == nil || task.VideoURL == "" {
		return "", errors.New("videogen: no video url to download")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("videogen: create clip dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.VideoURL, nil)
	if err != nil {
		return "", fmt.Errorf("videogen: build download request: %w", err)
	}
	client := &http.Client{Timeout: time.Duration(c.cfg.DownloadTimeout) * time.Second}
	if c.httpClient != nil {
		client.Transport = c.httpClient.Transport
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("videogen: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("videogen: download: http %d", resp.StatusCode)
	}

	target := filepath.Join(destDir, filename)
	tmp := target + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("videogen: create clip file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("videogen: write clip file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("videogen: close clip file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", fmt.Errorf("videogen: finalize clip file: %w", err)
	}
	return target, nil
}

// GenerateClip runs the full create, wait, download sequence for one scene.
func (c *Client) GenerateClip(ctx context.Context, req Request, destDir, filename string) (string, error) {
	task, err := c.CreateTask(ctx, req)
	if err != nil {
		return "", err
	}
	done, err := c.WaitForCompletion(ctx, task.ID)
	if err != nil {
		return "", err
	}
	return c.Download(ctx, done, destDir, filename)
}

// clampDuration rounds the scene length up to whole seconds and caps it at
// the configured clip maximum.
func (c *Client) clampDuration(seconds float64) int {
	duration := int(math.Ceil(seconds))
	if duration < 1 {
		duration = 1
	}
	if duration > c.cfg.MaxClipSeconds {
		duration = c.cfg.MaxClipSeconds
	}
	return duration
}

func (c *Client) do(ctx context.Context, method, url string, payload any) (*taskResponse, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("videogen: marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("videogen: build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("videogen: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("videogen: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("videogen: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded taskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("videogen: decode response: %w", err)
	}
	return &decoded, nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
