// Package upload delivers finished videos to their destination and returns
// the public URL recorded on the song. Two providers are supported: a local
// directory (network mount) and an HTTP endpoint.
package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"songreel/internal/config"
	"songreel/internal/services"
)

// Uploader delivers a finished video and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, videoPath string) (string, error)
}

// New builds the uploader selected by the configuration.
func New(cfg config.Upload) (Uploader, error) {
	switch cfg.Provider {
	case "local":
		return &Local{dir: cfg.Dir, baseURL: strings.TrimSuffix(cfg.BaseURL, "/")}, nil
	case "http":
		return &HTTP{
			endpoint: cfg.Endpoint,
			apiKey:   cfg.APIKey,
			client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		}, nil
	default:
		return nil, fmt.Errorf("upload: %w: unknown provider %q", services.ErrConfiguration, cfg.Provider)
	}
}

// Local copies the video into a delivery directory, typically a network
// mount, and derives the public URL from the configured base.
type Local struct {
	dir     string
	baseURL string
}

// Upload copies the video into the delivery directory.
func (l *Local) Upload(_ context.Context, videoPath string) (string, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return "", fmt.Errorf("upload: video missing: %w", err)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("upload: create delivery dir: %w", err)
	}

	filename := fmt.Sprintf("%d_%s", time.Now().UTC().Unix(), filepath.Base(videoPath))
	target := filepath.Join(l.dir, filename)

	source, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("upload: open video: %w", err)
	}
	defer source.Close()

	tmp := target + ".part"
	dest, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("upload: create delivery file: %w", err)
	}
	written, err := io.Copy(dest, source)
	if err != nil {
		_ = dest.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("upload: copy video: %w", err)
	}
	if err := dest.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("upload: close delivery file: %w", err)
	}
	if written != info.Size() {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("upload: short copy: wrote %d of %d bytes", written, info.Size())
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", fmt.Errorf("upload: finalize delivery file: %w", err)
	}

	if l.baseURL != "" {
		return l.baseURL + "/" + filename, nil
	}
	return "file://" + target, nil
}

// HTTP puts the raw video bytes to a storage endpoint under a timestamped
// object name and expects the public URL in the response body.
type HTTP struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// WithHTTPClient overrides the HTTP uploader's client. Used in tests.
func (h *HTTP) WithHTTPClient(client *http.Client) *HTTP {
	if client != nil {
		h.client = client
	}
	return h
}

// Upload puts the video to the configured endpoint.
func (h *HTTP) Upload(ctx context.Context, videoPath string) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("upload: open video: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("upload: stat video: %w", err)
	}

	objectName := fmt.Sprintf("%d_%s", time.Now().UTC().Unix(), filepath.Base(videoPath))
	target := strings.TrimSuffix(h.endpoint, "/") + "/" + objectName

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, file)
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "video/mp4")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("upload: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if url := strings.TrimSpace(string(body)); url != "" {
		return url, nil
	}
	// Some storage endpoints return an empty body; the object URL is then the
	// request target itself.
	return target, nil
}
