package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"songreel/internal/logging"
	"songreel/internal/queue"
	"songreel/internal/resilience"
	"songreel/internal/script"
	"songreel/internal/scriptgen"
	"songreel/internal/services"
	"songreel/internal/stitch"
	"songreel/internal/videogen"
)

// CycleSummary reports what one poll cycle accomplished.
type CycleSummary struct {
	Processed int
	Failed    int
	Duration  time.Duration
}

// RunCycle performs one poll cycle: resume songs whose records sit in retry,
// then pick up a batch of songs that have never been attempted. Failures are
// isolated per song; a cycle-level error is returned only when the queue
// itself cannot be read.
func (m *Manager) RunCycle(ctx context.Context) (CycleSummary, error) {
	start := time.Now()
	var summary CycleSummary

	retries, err := resilience.DoValue(ctx, m.guards.store, func(ctx context.Context) ([]*queue.ProcessingRecord, error) {
		return m.store.ListRecords(ctx, queue.StatusRetry)
	})
	if err != nil {
		return summary, fmt.Errorf("list retry records: %w", err)
	}
	for _, record := range retries {
		if ctx.Err() != nil {
			summary.Duration = time.Since(start)
			return summary, ctx.Err()
		}
		song, err := m.store.GetSong(ctx, record.SongID)
		if err != nil {
			m.logger.Error("retry record references unknown song",
				logging.String(logging.FieldRecordID, record.ID),
				logging.Int64("song_id", record.SongID),
				logging.Error(err),
			)
			summary.Failed++
			continue
		}
		if err := m.processSong(ctx, song, record); err != nil {
			if errors.Is(err, context.Canceled) {
				summary.Duration = time.Since(start)
				return summary, err
			}
			summary.Failed++
			continue
		}
		summary.Processed++
	}

	pending, err := resilience.DoValue(ctx, m.guards.store, func(ctx context.Context) ([]*queue.Song, error) {
		return m.store.PendingSongs(ctx, m.cfg.Workflow.BatchSize)
	})
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, fmt.Errorf("fetch pending songs: %w", err)
	}
	for _, song := range pending {
		if ctx.Err() != nil {
			summary.Duration = time.Since(start)
			return summary, ctx.Err()
		}
		record, err := m.store.CreateRecord(ctx, song.ID)
		if errors.Is(err, queue.ErrDuplicateActiveRecord) {
			m.logger.Debug("song already has an active record, skipping",
				logging.Int64("song_id", song.ID),
			)
			continue
		}
		if err != nil {
			m.logger.Error("failed to create processing record",
				logging.Int64("song_id", song.ID),
				logging.Error(err),
			)
			summary.Failed++
			continue
		}
		if err := m.processSong(ctx, song, record); err != nil {
			if errors.Is(err, context.Canceled) {
				summary.Duration = time.Since(start)
				return summary, err
			}
			summary.Failed++
			continue
		}
		summary.Processed++
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// processSong drives one song through every stage. The record already exists;
// this owns its transitions from pending or retry through to a terminal state.
func (m *Manager) processSong(ctx context.Context, song *queue.Song, record *queue.ProcessingRecord) error {
	ctx = services.WithSongID(ctx, strconv.FormatInt(song.ID, 10))
	ctx = services.WithRecordID(ctx, record.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)

	logger.Info("song started",
		logging.String(logging.FieldEventType, "song_start"),
		logging.String("title", song.Title),
		logging.String("artist", song.Artist),
	)
	if err := m.notifier.NotifySongStarted(ctx, song.Title, song.Artist); err != nil {
		logger.Warn("start notification failed", logging.Error(err))
	}

	record, err := m.transition(ctx, record.ID, queue.TransitionUpdate{
		Status: queue.StatusProcessing,
		Stage:  queue.StageScriptGeneration,
	})
	if err != nil {
		logger.Error("failed to transition record to processing", logging.Error(err))
		return err
	}

	scr, err := m.loadOrGenerateScript(ctx, logger, song, record)
	if err != nil {
		m.failSong(ctx, logger, song, record, err)
		return err
	}

	if _, err := m.transition(ctx, record.ID, queue.TransitionUpdate{Stage: queue.StageVideoGeneration}); err != nil {
		logger.Error("failed to transition record to video generation", logging.Error(err))
		return err
	}
	clips, sceneResults, err := m.generateClips(ctx, logger, song, scr)
	m.persistSceneResults(ctx, logger, record.ID, sceneResults)
	if err != nil {
		m.failSong(ctx, logger, song, record, err)
		return err
	}
	if failed := failedSceneCount(sceneResults); failed > 0 {
		update := queue.TransitionUpdate{
			ErrorMessage: fmt.Sprintf("%d of %d scenes failed video generation", failed, len(scr.Scenes)),
		}
		if _, err := m.transition(ctx, record.ID, update); err != nil {
			logger.Warn("failed to record partial scene failures", logging.Error(err))
		}
	}

	if _, err := m.transition(ctx, record.ID, queue.TransitionUpdate{Stage: queue.StageVideoStitching}); err != nil {
		logger.Error("failed to transition record to stitching", logging.Error(err))
		return err
	}
	outputPath := filepath.Join(m.cfg.Paths.OutputDir, fmt.Sprintf("song_%d_final.mp4", song.ID))
	if err := m.stitcher.Stitch(ctx, clips, song.AudioURL, outputPath); err != nil {
		wrapped := services.Wrap(services.ErrStitching, string(queue.StageVideoStitching), "stitch", "assembling final video failed", err)
		m.failSong(ctx, logger, song, record, wrapped)
		return wrapped
	}
	if _, err := m.transition(ctx, record.ID, queue.TransitionUpdate{VideoPath: outputPath}); err != nil {
		logger.Warn("failed to record stitched video path", logging.Error(err))
	}

	if _, err := m.transition(ctx, record.ID, queue.TransitionUpdate{Stage: queue.StageUploading}); err != nil {
		logger.Error("failed to transition record to uploading", logging.Error(err))
		return err
	}
	videoURL, err := resilience.DoValue(ctx, m.guards.upload, func(ctx context.Context) (string, error) {
		return m.uploader.Upload(ctx, outputPath)
	})
	if err != nil {
		wrapped := services.Wrap(services.ErrUpload, string(queue.StageUploading), "upload", "delivering final video failed", err)
		m.failSong(ctx, logger, song, record, wrapped)
		return wrapped
	}

	if _, err := m.transition(ctx, record.ID, queue.TransitionUpdate{
		Status:    queue.StatusCompleted,
		ResultURL: videoURL,
	}); err != nil {
		logger.Error("failed to complete record", logging.Error(err))
		return err
	}
	if err := m.guards.store.Do(ctx, func(ctx context.Context) error {
		return m.store.SetSongVideoURL(ctx, song.ID, videoURL)
	}); err != nil {
		logger.Error("failed to record video url on song", logging.Error(err))
	}

	logger.Info("song completed",
		logging.String(logging.FieldEventType, "song_completed"),
		logging.String("video_url", videoURL),
		logging.Int("clips", len(clips)),
	)
	if err := m.notifier.NotifySongCompleted(ctx, song.Title, song.Artist, videoURL); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
	return nil
}

// loadOrGenerateScript reuses the script persisted by a previous attempt when
// the record came back through retry, otherwise it calls the generation API.
func (m *Manager) loadOrGenerateScript(ctx context.Context, logger *slog.Logger, song *queue.Song, record *queue.ProcessingRecord) (*script.Script, error) {
	if record.ScriptJSON != "" {
		scr, err := script.Decode(record.ScriptJSON)
		if err == nil {
			logger.Info("reusing script from previous attempt", logging.Int("scenes", len(scr.Scenes)))
			return scr, nil
		}
		logger.Warn("stored script invalid, regenerating", logging.Error(err))
	}

	scr, err := resilience.DoValue(ctx, m.guards.scriptgen, func(ctx context.Context) (*script.Script, error) {
		return m.scripts.Generate(ctx, scriptgen.Request{
			Title:       song.Title,
			Artist:      song.Artist,
			Genre:       song.Genre,
			Mood:        song.Mood,
			Style:       song.Style,
			Description: song.Description,
			Duration:    song.DurationSeconds,
		})
	})
	if err != nil {
		return nil, services.Wrap(services.ErrScriptGeneration, string(queue.StageScriptGeneration), "generate", "script generation failed", err)
	}

	encoded, err := scr.Encode()
	if err != nil {
		return nil, services.Wrap(services.ErrScriptGeneration, string(queue.StageScriptGeneration), "encode", "script serialization failed", err)
	}
	if _, err := m.transition(ctx, record.ID, queue.TransitionUpdate{ScriptJSON: encoded}); err != nil {
		logger.Warn("failed to persist generated script", logging.Error(err))
	}
	logger.Info("script generated", logging.Int("scenes", len(scr.Scenes)))
	return scr, nil
}

// generateClips resolves every scene to a clip file, preferring catalog reuse
// over fresh generation. Recoverable scene failures are absorbed and recorded
// on the scene's result entry; the song only fails here when no scene produced
// a clip at all.
func (m *Manager) generateClips(ctx context.Context, logger *slog.Logger, song *queue.Song, scr *script.Script) ([]stitch.Clip, []queue.SceneResult, error) {
	var matcher ClipMatcher
	if m.newMatcher != nil {
		matcher = m.newMatcher()
	}

	scenes := scr.SortedScenes()
	clips := make([]stitch.Clip, 0, len(scenes))
	results := make([]queue.SceneResult, 0, len(scenes))

	for i, scene := range scenes {
		if ctx.Err() != nil {
			return nil, results, ctx.Err()
		}
		sceneLogger := logger.With(logging.Args(logging.Int(logging.FieldSceneIndex, i))...)

		if matcher != nil {
			match, err := matcher.Match(ctx, scene.Description)
			if err != nil {
				// A broken catalog degrades to fresh generation rather than
				// blocking the song.
				sceneLogger.Warn("clip matching unavailable", logging.Error(err))
			} else if match != nil {
				sceneLogger.Info("reusing catalog clip",
					logging.String("clip", match.Clip.Path),
					logging.Float64("score", match.Score),
				)
				clips = append(clips, stitch.Clip{Path: match.Clip.Path, StartTime: scene.StartTime})
				results = append(results, queue.SceneResult{SceneIndex: i, ClipPath: match.Clip.Path, Reused: true})
				continue
			}
		}

		filename := fmt.Sprintf("scene_%03d_%s.mp4", i, uuid.NewString()[:8])
		path, err := resilience.DoValue(ctx, m.guards.videogen, func(ctx context.Context) (string, error) {
			return m.clips.GenerateClip(ctx, videogen.Request{
				Prompt:          scene.Prompt,
				NegativePrompt:  song.NegativePrompt,
				ImageURL:        song.ReferenceImage,
				DurationSeconds: scene.Seconds(),
			}, m.cfg.Paths.ClipDir, filename)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, results, err
			}
			wrapped := services.Wrap(
				services.ErrVideoGeneration,
				string(queue.StageVideoGeneration),
				"generate_clip",
				fmt.Sprintf("scene %d", i),
				err,
			)
			if !services.SceneRecoverable(wrapped) {
				return nil, results, wrapped
			}
			results = append(results, queue.SceneResult{SceneIndex: i, Error: wrapped.Error()})
			sceneLogger.Warn("scene generation failed, continuing with remaining scenes",
				logging.String(logging.FieldEventType, "scene_failed"),
				logging.Error(wrapped),
			)
			if errors.Is(err, resilience.ErrBreakerOpen) {
				// The dependency is known down; the remaining scenes would
				// only be rejected the same way.
				for j := i + 1; j < len(scenes); j++ {
					results = append(results, queue.SceneResult{SceneIndex: j, Error: "skipped: video generation circuit breaker open"})
				}
				sceneLogger.Warn("video generation breaker open, skipping remaining scenes")
				break
			}
			continue
		}

		clips = append(clips, stitch.Clip{Path: path, StartTime: scene.StartTime})
		results = append(results, queue.SceneResult{SceneIndex: i, ClipPath: path})
		if matcher != nil {
			if _, err := matcher.Index(ctx, path, scene.Prompt, scene.Description, scene.Seconds()); err != nil {
				sceneLogger.Warn("failed to index clip into catalog", logging.Error(err))
			}
		}
	}

	if len(clips) == 0 {
		return nil, results, services.Wrap(
			services.ErrNoClipsProduced,
			string(queue.StageVideoGeneration),
			"scenes",
			fmt.Sprintf("none of %d scenes produced a clip", len(scenes)),
			nil,
		)
	}
	return clips, results, nil
}

// persistSceneResults stores the per-scene outcomes on the record. Failure to
// persist them degrades the failure detail, not the pipeline.
func (m *Manager) persistSceneResults(ctx context.Context, logger *slog.Logger, recordID string, results []queue.SceneResult) {
	if len(results) == 0 {
		return
	}
	encoded, err := queue.EncodeSceneResults(results)
	if err != nil {
		logger.Warn("failed to encode scene results", logging.Error(err))
		return
	}
	if _, err := m.transition(ctx, recordID, queue.TransitionUpdate{SceneResults: encoded}); err != nil {
		logger.Warn("failed to persist scene results", logging.Error(err))
	}
}

func failedSceneCount(results []queue.SceneResult) int {
	failed := 0
	for _, result := range results {
		if result.Failed() {
			failed++
		}
	}
	return failed
}

func (m *Manager) failSong(ctx context.Context, logger *slog.Logger, song *queue.Song, record *queue.ProcessingRecord, cause error) {
	logger.Error("song failed",
		logging.String(logging.FieldEventType, "song_failed"),
		logging.Error(cause),
	)
	if _, err := m.transition(ctx, record.ID, queue.TransitionUpdate{
		Status:       queue.StatusFailed,
		ErrorMessage: cause.Error(),
	}); err != nil {
		logger.Error("failed to persist song failure", logging.Error(err))
	}
	if err := m.notifier.NotifySongFailed(ctx, song.Title, song.Artist, cause.Error()); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

func (m *Manager) transition(ctx context.Context, id string, update queue.TransitionUpdate) (*queue.ProcessingRecord, error) {
	return resilience.DoValue(ctx, m.guards.store, func(ctx context.Context) (*queue.ProcessingRecord, error) {
		return m.store.Transition(ctx, id, update)
	})
}
