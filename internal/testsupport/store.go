package testsupport

import (
	"context"
	"testing"

	"songreel/internal/config"
	"songreel/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddSong inserts a song for tests using the provided store.
func AddSong(t testing.TB, store *queue.Store, title, artist, audioURL string) *queue.Song {
	t.Helper()

	song, err := store.AddSong(context.Background(), queue.Song{Title: title, Artist: artist, AudioURL: audioURL})
	if err != nil {
		t.Fatalf("store.AddSong: %v", err)
	}
	return song
}
