package queue_test

import (
	"context"
	"errors"
	"testing"

	"songreel/internal/queue"
	"songreel/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	song, err := store.AddSong(ctx, queue.Song{
		Title:    "Midnight Drive",
		Artist:   "Nova",
		AudioURL: "https://cdn.example.com/midnight.mp3",
		Genre:    "synthwave",
		Mood:     "wistful",
	})
	if err != nil {
		t.Fatalf("AddSong failed: %v", err)
	}
	if song.ID == 0 {
		t.Fatal("expected song ID to be assigned")
	}
	if song.Genre != "synthwave" || song.Mood != "wistful" {
		t.Fatalf("expected generation hints to round-trip, got %+v", song)
	}

	fetched, err := store.GetSong(ctx, song.ID)
	if err != nil {
		t.Fatalf("GetSong failed: %v", err)
	}
	if fetched.Title != "Midnight Drive" || fetched.Artist != "Nova" {
		t.Fatalf("unexpected fetched song: %#v", fetched)
	}
	if fetched.HasVideo() {
		t.Fatal("new song must not carry a video URL")
	}
}

func TestGetSongUnknownID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.GetSong(context.Background(), 9999); !errors.Is(err, queue.ErrSongNotFound) {
		t.Fatalf("expected ErrSongNotFound, got %v", err)
	}
}

func TestCreateRecordRejectsDuplicateActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	song := testsupport.AddSong(t, store, "Echoes", "Lyra", "https://cdn.example.com/echoes.mp3")

	first, err := store.CreateRecord(ctx, song.ID)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	if first.Status != queue.StatusPending {
		t.Fatalf("expected pending record, got %s", first.Status)
	}

	if _, err := store.CreateRecord(ctx, song.ID); !errors.Is(err, queue.ErrDuplicateActiveRecord) {
		t.Fatalf("expected ErrDuplicateActiveRecord, got %v", err)
	}

	// A terminal record no longer blocks a new attempt.
	if _, err := store.Transition(ctx, first.ID, queue.TransitionUpdate{Status: queue.StatusFailed}); err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}
	second, err := store.CreateRecord(ctx, song.ID)
	if err != nil {
		t.Fatalf("CreateRecord after terminal record failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh record id")
	}
}

func TestTransitionStampsProcessingStartOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	song := testsupport.AddSong(t, store, "Aurora", "Lyra", "https://cdn.example.com/aurora.mp3")
	record, err := store.CreateRecord(ctx, song.ID)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}

	updated, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{
		Status: queue.StatusProcessing,
		Stage:  queue.StageScriptGeneration,
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if updated.ProcessingStartedAt == nil {
		t.Fatal("expected processing_started_at to be stamped")
	}
	firstStart := *updated.ProcessingStartedAt

	again, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{
		Status: queue.StatusProcessing,
		Stage:  queue.StageVideoGeneration,
	})
	if err != nil {
		t.Fatalf("second Transition failed: %v", err)
	}
	if again.ProcessingStartedAt == nil || !again.ProcessingStartedAt.Equal(firstStart) {
		t.Fatalf("processing_started_at must not be re-stamped: %v vs %v", again.ProcessingStartedAt, firstStart)
	}
	if again.Stage != queue.StageVideoGeneration {
		t.Fatalf("expected stage advance, got %s", again.Stage)
	}
}

func TestTransitionAccumulatesFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	song := testsupport.AddSong(t, store, "Glass Ocean", "Nova", "https://cdn.example.com/glass.mp3")
	record, err := store.CreateRecord(ctx, song.ID)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}

	if _, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{
		Status:     queue.StatusProcessing,
		Stage:      queue.StageScriptGeneration,
		ScriptJSON: `{"scenes":[]}`,
	}); err != nil {
		t.Fatalf("Transition with script failed: %v", err)
	}

	sceneResults, err := queue.EncodeSceneResults([]queue.SceneResult{
		{SceneIndex: 0, ClipPath: "/clips/scene_000.mp4"},
		{SceneIndex: 1, Error: "render farm down"},
	})
	if err != nil {
		t.Fatalf("EncodeSceneResults failed: %v", err)
	}
	if _, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{SceneResults: sceneResults}); err != nil {
		t.Fatalf("Transition with scene results failed: %v", err)
	}

	// A later failure keeps the script and stage for the audit trail.
	failed, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{
		Status:       queue.StatusFailed,
		ErrorMessage: "stitching exploded",
	})
	if err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}
	if failed.ScriptJSON != `{"scenes":[]}` {
		t.Fatalf("script must survive failure, got %q", failed.ScriptJSON)
	}
	if failed.Stage != queue.StageScriptGeneration {
		t.Fatalf("stage must survive failure, got %q", failed.Stage)
	}
	if failed.ErrorMessage != "stitching exploded" {
		t.Fatalf("unexpected error message %q", failed.ErrorMessage)
	}

	decoded, err := queue.DecodeSceneResults(failed.SceneResults)
	if err != nil {
		t.Fatalf("DecodeSceneResults failed: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ClipPath != "/clips/scene_000.mp4" {
		t.Fatalf("scene results must survive failure, got %+v", decoded)
	}
	if !decoded[1].Failed() || decoded[1].Error != "render farm down" {
		t.Fatalf("expected failed scene entry to persist, got %+v", decoded[1])
	}
}

func TestTransitionResultURLStampsCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	song := testsupport.AddSong(t, store, "Starlight", "Lyra", "https://cdn.example.com/starlight.mp3")
	record, err := store.CreateRecord(ctx, song.ID)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}

	done, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{
		Status:    queue.StatusCompleted,
		ResultURL: "https://media.example.com/starlight.mp4",
	})
	if err != nil {
		t.Fatalf("Transition to completed: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped with the result URL")
	}
	if done.VideoURL != "https://media.example.com/starlight.mp4" {
		t.Fatalf("unexpected video URL %q", done.VideoURL)
	}
}

func TestTransitionUnknownRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Transition(context.Background(), "no-such-id", queue.TransitionUpdate{Status: queue.StatusProcessing})
	if !errors.Is(err, queue.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestPendingSongsSkipsFinishedAndActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	fresh := testsupport.AddSong(t, store, "Fresh", "Nova", "https://cdn.example.com/fresh.mp3")
	active := testsupport.AddSong(t, store, "Active", "Nova", "https://cdn.example.com/active.mp3")
	finished := testsupport.AddSong(t, store, "Finished", "Nova", "https://cdn.example.com/finished.mp3")

	if _, err := store.CreateRecord(ctx, active.ID); err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	if err := store.SetSongVideoURL(ctx, finished.ID, "https://media.example.com/finished.mp4"); err != nil {
		t.Fatalf("SetSongVideoURL failed: %v", err)
	}

	pending, err := store.PendingSongs(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSongs failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh song, got %#v", pending)
	}
}

func TestPendingSongsHonorsLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		testsupport.AddSong(t, store, "Song", "Nova", "https://cdn.example.com/song.mp3")
	}
	pending, err := store.PendingSongs(ctx, 5)
	if err != nil {
		t.Fatalf("PendingSongs failed: %v", err)
	}
	if len(pending) != 5 {
		t.Fatalf("expected batch of 5, got %d", len(pending))
	}
}

func TestRetryFailedMovesRecordsToRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	song := testsupport.AddSong(t, store, "Retry Me", "Lyra", "https://cdn.example.com/retry.mp3")
	record, err := store.CreateRecord(ctx, song.ID)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	if _, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{Status: queue.StatusFailed, ErrorMessage: "boom"}); err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}

	moved, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 record moved, got %d", moved)
	}

	fetched, err := store.GetRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if fetched.Status != queue.StatusRetry {
		t.Fatalf("expected retry status, got %s", fetched.Status)
	}
	if fetched.ErrorMessage != "boom" {
		t.Fatalf("retry must keep the audit trail, got %q", fetched.ErrorMessage)
	}
}

func TestHealthCountsPerStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i, status := range []queue.Status{queue.StatusCompleted, queue.StatusFailed, queue.StatusPending} {
		song := testsupport.AddSong(t, store, "Song", "Nova", "https://cdn.example.com/song.mp3")
		record, err := store.CreateRecord(ctx, song.ID)
		if err != nil {
			t.Fatalf("CreateRecord %d failed: %v", i, err)
		}
		if status != queue.StatusPending {
			if _, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{Status: status}); err != nil {
				t.Fatalf("Transition %d failed: %v", i, err)
			}
		}
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if summary.Total != 3 || summary.Completed != 1 || summary.Failed != 1 || summary.Pending != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	song := testsupport.AddSong(t, store, "Stuck", "Nova", "https://cdn.example.com/stuck.mp3")
	record, err := store.CreateRecord(ctx, song.ID)
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}
	if _, err := store.Transition(ctx, record.ID, queue.TransitionUpdate{Status: queue.StatusProcessing}); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	moved, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 record reset, got %d", moved)
	}
	fetched, err := store.GetRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if fetched.Status != queue.StatusRetry {
		t.Fatalf("expected retry after reset, got %s", fetched.Status)
	}
}
