// Package stitch concatenates scene clips into one video and muxes the song
// audio onto it with ffmpeg.
package stitch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"songreel/internal/config"
	"songreel/internal/logging"
)

// Clip is one successfully produced scene clip with its position on the audio
// timeline.
type Clip struct {
	Path      string
	StartTime float64
}

// CommandRunner executes an external command. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Stitcher builds the final video from scene clips and the song audio.
type Stitcher struct {
	cfg        config.Stitching
	logger     *slog.Logger
	run        CommandRunner
	httpClient *http.Client
}

// Option customizes the stitcher.
type Option func(*Stitcher)

// WithCommandRunner overrides how ffmpeg is invoked. Used in tests.
func WithCommandRunner(run CommandRunner) Option {
	return func(s *Stitcher) {
		if run != nil {
			s.run = run
		}
	}
}

// WithHTTPClient overrides the audio download client. Used in tests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Stitcher) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// New constructs a stitcher.
func New(cfg config.Stitching, logger *slog.Logger, opts ...Option) *Stitcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Stitcher{
		cfg:        cfg,
		logger:     logger,
		run:        runCommand,
		httpClient: &http.Client{Timeout: time.Duration(cfg.DownloadTimeout) * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stitch downloads the song audio, concatenates the clips in timeline order,
// and muxes the audio over the result. The video stream is copied; audio is
// encoded to AAC and the output is trimmed to the shorter of the two.
func (s *Stitcher) Stitch(ctx context.Context, clips []Clip, audioURL, outputPath string) error {
	if len(clips) == 0 {
		return errors.New("stitch: no clips to stitch")
	}
	for _, clip := range clips {
		if _, err := os.Stat(clip.Path); err != nil {
			return fmt.Errorf("stitch: clip missing: %w", err)
		}
	}

	ordered := make([]Clip, len(clips))
	copy(ordered, clips)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTime < ordered[j].StartTime
	})

	workDir, err := os.MkdirTemp("", "songreel-stitch-")
	if err != nil {
		return fmt.Errorf("stitch: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath, err := s.downloadAudio(ctx, audioURL, workDir)
	if err != nil {
		return err
	}

	listPath := filepath.Join(workDir, "clips.txt")
	if err := writeConcatList(listPath, ordered); err != nil {
		return err
	}

	concatPath := filepath.Join(workDir, "concat.mp4")
	s.logger.Debug("concatenating clips", logging.Int("clips", len(ordered)))
	if err := s.run(ctx, s.cfg.FFmpegBinary,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		concatPath,
	); err != nil {
		return fmt.Errorf("stitch: concat clips: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("stitch: create output dir: %w", err)
	}
	s.logger.Debug("muxing audio track", logging.String("output", outputPath))
	if err := s.run(ctx, s.cfg.FFmpegBinary,
		"-i", concatPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outputPath,
	); err != nil {
		return fmt.Errorf("stitch: mux audio: %w", err)
	}
	return nil
}

func (s *Stitcher) downloadAudio(ctx context.Context, audioURL, workDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("stitch: build audio request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stitch: download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stitch: download audio: http %d", resp.StatusCode)
	}

	audioPath := filepath.Join(workDir, "audio"+audioExtension(audioURL))
	file, err := os.Create(audioPath)
	if err != nil {
		return "", fmt.Errorf("stitch: create audio file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("stitch: write audio file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("stitch: close audio file: %w", err)
	}
	return audioPath, nil
}

func audioExtension(audioURL string) string {
	ext := filepath.Ext(strings.SplitN(audioURL, "?", 2)[0])
	if ext == "" {
		return ".mp3"
	}
	return ext
}

func writeConcatList(path string, clips []Clip) error {
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip.Path)
		if err != nil {
			return fmt.Errorf("stitch: resolve clip path: %w", err)
		}
		// Single quotes in paths must be escaped for the concat demuxer.
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("stitch: write concat list: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
