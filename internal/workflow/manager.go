package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"songreel/internal/catalog"
	"songreel/internal/config"
	"songreel/internal/logging"
	"songreel/internal/notifications"
	"songreel/internal/queue"
	"songreel/internal/script"
	"songreel/internal/scriptgen"
	"songreel/internal/stitch"
	"songreel/internal/upload"
	"songreel/internal/videogen"
)

// ScriptGenerator produces a scene script for a song.
type ScriptGenerator interface {
	Generate(ctx context.Context, req scriptgen.Request) (*script.Script, error)
}

// ClipGenerator renders one scene into a downloaded clip file.
type ClipGenerator interface {
	GenerateClip(ctx context.Context, req videogen.Request, destDir, filename string) (string, error)
}

// ClipMatcher finds reusable catalog clips and indexes freshly generated
// ones. A nil matcher disables reuse entirely.
type ClipMatcher interface {
	Match(ctx context.Context, sceneDescription string) (*catalog.Match, error)
	Index(ctx context.Context, path, prompt, sceneDescription string, durationSeconds float64) (*catalog.Clip, error)
}

// VideoStitcher assembles scene clips and the audio track into the final video.
type VideoStitcher interface {
	Stitch(ctx context.Context, clips []stitch.Clip, audioURL, outputPath string) error
}

// Manager owns the polling loop and the per-song pipeline.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	scripts  ScriptGenerator
	clips    ClipGenerator
	stitcher VideoStitcher
	uploader upload.Uploader

	// newMatcher builds a fresh matcher per song run so the per-run
	// diversity state never leaks between songs. Nil when matching is
	// disabled or no catalog is available.
	newMatcher func() ClipMatcher

	guards guardSet

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// Option configures optional Manager behavior. Options exist mainly so tests
// can substitute collaborators.
type Option func(*Manager)

// WithNotifier overrides the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithScriptGenerator overrides the script generation client.
func WithScriptGenerator(gen ScriptGenerator) Option {
	return func(m *Manager) {
		if gen != nil {
			m.scripts = gen
		}
	}
}

// WithClipGenerator overrides the video generation client.
func WithClipGenerator(gen ClipGenerator) Option {
	return func(m *Manager) {
		if gen != nil {
			m.clips = gen
		}
	}
}

// WithStitcher overrides the video stitcher.
func WithStitcher(stitcher VideoStitcher) Option {
	return func(m *Manager) {
		if stitcher != nil {
			m.stitcher = stitcher
		}
	}
}

// WithUploader overrides the uploader.
func WithUploader(uploader upload.Uploader) Option {
	return func(m *Manager) {
		if uploader != nil {
			m.uploader = uploader
		}
	}
}

// WithMatcherFactory overrides how per-song matchers are built. A factory
// returning nil disables matching.
func WithMatcherFactory(factory func() ClipMatcher) Option {
	return func(m *Manager) {
		m.newMatcher = factory
	}
}

// WithGuardSleeper overrides the backoff sleeper used by every guard. Used in
// tests to make retries instant.
func WithGuardSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(m *Manager) {
		m.guards = m.guards.withSleeper(sleep)
	}
}

// NewManager constructs a workflow manager with collaborators built from the
// configuration. The catalog store may be nil; matching is then disabled.
func NewManager(cfg *config.Config, store *queue.Store, catalogStore *catalog.Store, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	uploader, err := upload.New(cfg.Upload)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "workflow-manager"),
		notifier: notifications.NewService(cfg),
		scripts:  scriptgen.New(cfg.ScriptGen, cfg.Matching.Character),
		clips:    videogen.New(cfg.VideoGen),
		stitcher: stitch.New(cfg.Stitching, logging.NewComponentLogger(logger, "stitcher")),
		uploader: uploader,
		guards:   buildGuards(cfg.Resilience, logging.NewComponentLogger(logger, "resilience")),
	}
	if cfg.Matching.Enabled && catalogStore != nil {
		matcherLogger := logging.NewComponentLogger(logger, "clip-matcher")
		settings := cfg.Matching
		m.newMatcher = func() ClipMatcher {
			return catalog.NewMatcher(catalogStore, settings, matcherLogger)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start begins background polling. Returns an error when already running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background polling and waits for the in-flight cycle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the polling loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastError returns the most recent cycle-level failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	// Records stranded in flight by a previous daemon run return to retry so
	// this run picks the songs up again.
	if reset, err := m.store.ResetStuckProcessing(ctx); err != nil {
		m.logger.Warn("failed to reset stuck records",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	} else if reset > 0 {
		m.logger.Info("returned stranded records to retry", logging.Int64("count", reset))
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		summary, err := m.RunCycle(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("poll cycle failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "cycle_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			if notifyErr := m.notifier.NotifyError(ctx, err, "queue poll"); notifyErr != nil {
				m.logger.Warn("error notification failed", logging.Error(notifyErr))
			}
			if !m.sleep(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second) {
				return
			}
			continue
		}

		if summary.Processed+summary.Failed > 0 {
			if err := m.notifier.NotifyQueueCompleted(ctx, summary.Processed, summary.Failed, summary.Duration); err != nil {
				m.logger.Warn("queue notification failed", logging.Error(err))
			}
		}

		if !m.sleep(ctx, time.Duration(m.cfg.Workflow.PollInterval)*time.Second) {
			return
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
