package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"songreel/internal/catalog"
	"songreel/internal/config"
	"songreel/internal/logging"
	"songreel/internal/testsupport"
)

func matchingSettings() config.Matching {
	return config.Default().Matching
}

func openCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMatchEmptyCatalogIsNoMatch(t *testing.T) {
	store := openCatalog(t)
	matcher := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())

	match, err := matcher.Match(context.Background(), "Yona dancing in the city")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if match != nil {
		t.Fatalf("empty catalog must be a normal no-match, got %#v", match)
	}
}

func TestIndexedClipIsReusedForSimilarScene(t *testing.T) {
	store := openCatalog(t)
	matcher := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())
	ctx := context.Background()

	scene := "Yona playing guitar on stage"
	clip, err := matcher.Index(ctx, "/clips/yona_playing_stage_001.mp4", "anime girl playing guitar, concert stage", scene, 8)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if clip.Character != "yona" || clip.Action != "playing" {
		t.Fatalf("unexpected indexed components: %#v", clip)
	}

	match, err := matcher.Match(ctx, scene)
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if match == nil {
		t.Fatal("expected the indexed clip to be reused")
	}
	if match.Clip.ID != clip.ID {
		t.Fatalf("expected clip %d, got %d", clip.ID, match.Clip.ID)
	}
	if match.Score < 0.7 {
		t.Fatalf("expected a strong match, got %.2f", match.Score)
	}

	stored, err := store.Get(ctx, clip.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.UsageCount != 1 {
		t.Fatalf("expected persistent usage count 1, got %d", stored.UsageCount)
	}
	if stored.LastUsedAt == nil {
		t.Fatal("expected last-used timestamp after reuse")
	}
}

func TestInstrumentTaggedClipClearsComponentScore(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	// The clip is tagged with the instrument, not the verb; the scene still
	// has to land on it with a strong component score.
	if _, err := store.Add(ctx, catalog.Clip{
		Path:     "/clips/yona_guitar_stage_001.mp4",
		Filename: "yona_guitar_stage_001.mp4",
		Action:   "guitar",
		Setting:  "stage",
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	matcher := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())
	match, err := matcher.Match(ctx, "Yona playing guitar on stage")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if match == nil {
		t.Fatal("expected the guitar clip to be reused")
	}
	if match.Score < 0.7 {
		t.Fatalf("expected component score >= 0.7, got %.2f", match.Score)
	}
}

func TestIndexRecordsFilesize(t *testing.T) {
	store := openCatalog(t)
	matcher := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "yona_dancing_city_002.mp4")
	testsupport.WriteFile(t, path, 4096)

	clip, err := matcher.Index(ctx, path, "anime girl dancing, neon city", "Yona dancing in the city", 8)
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if clip.Filesize != 4096 {
		t.Fatalf("expected filesize 4096, got %d", clip.Filesize)
	}

	stored, err := store.GetByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if stored.Filesize != 4096 {
		t.Fatalf("expected persisted filesize 4096, got %d", stored.Filesize)
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	seed := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())
	if _, err := seed.Index(ctx, "/clips/yona_dancing_city_001.mp4", "anime girl dancing, neon city", "Yona dancing under neon lights", 8); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if _, err := seed.Index(ctx, "/clips/yona_singing_rooftop_001.mp4", "anime girl singing, rooftop", "Yona singing on a rooftop", 8); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	var firstID int64
	for i := 0; i < 5; i++ {
		matcher := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())
		match, err := matcher.Match(ctx, "Yona dancing under neon lights")
		if err != nil {
			t.Fatalf("Match %d returned error: %v", i, err)
		}
		if match == nil {
			t.Fatalf("Match %d found nothing", i)
		}
		if i == 0 {
			firstID = match.Clip.ID
			continue
		}
		if match.Clip.ID != firstID {
			t.Fatalf("Match %d picked clip %d, expected %d", i, match.Clip.ID, firstID)
		}
	}
}

func TestDiversityPenaltyLowersRepeatedReuse(t *testing.T) {
	store := openCatalog(t)
	matcher := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())
	ctx := context.Background()

	scene := "Yona dancing under neon lights"
	if _, err := matcher.Index(ctx, "/clips/yona_dancing_city_001.mp4", "anime girl dancing, neon city", scene, 8); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	var lastScore float64
	for i := 0; i < 3; i++ {
		match, err := matcher.Match(ctx, scene)
		if err != nil {
			t.Fatalf("Match %d returned error: %v", i, err)
		}
		if match == nil {
			t.Fatalf("Match %d found nothing", i)
		}
		if i > 0 && match.Score >= lastScore {
			t.Fatalf("expected penalty to lower score: %.2f then %.2f", lastScore, match.Score)
		}
		lastScore = match.Score
	}
}

func TestReuseFloorRejectsWeakCandidates(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	// A clip that shares nothing with the scene.
	if _, err := store.Add(ctx, catalog.Clip{
		Path:     "/clips/yona_crying_bedroom_001.mp4",
		Filename: "yona_crying_bedroom_001.mp4",
		Action:   "crying",
		Setting:  "bedroom",
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	matcher := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())
	match, err := matcher.Match(ctx, "a spaceship orbiting a distant planet")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if match != nil {
		t.Fatalf("weak candidate must not clear the reuse floor, got %#v", match)
	}
}

func TestFilenameFallbackPrefersLightlyUsedClips(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	// Metadata-free clips so component scoring cannot clear the floor, but
	// the filename carries a scene keyword.
	for _, path := range []string{"/clips/export_dancing_a.mp4", "/clips/export_dancing_b.mp4"} {
		if _, err := store.Add(ctx, catalog.Clip{Path: path, Filename: path[len("/clips/"):]}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	matcher := catalog.NewMatcher(store, matchingSettings(), logging.NewNop())
	match, err := matcher.Match(ctx, "dancing silhouettes")
	if err != nil {
		t.Fatalf("Match returned error: %v", err)
	}
	if match == nil {
		t.Fatal("expected a filename fallback match")
	}
}

type brokenSource struct{}

func (brokenSource) List(context.Context) ([]*catalog.Clip, error) {
	return nil, errors.New("catalog unavailable")
}

func (brokenSource) Add(context.Context, catalog.Clip) (*catalog.Clip, error) {
	return nil, errors.New("catalog unavailable")
}

func (brokenSource) IncrementUsage(context.Context, int64) error {
	return errors.New("catalog unavailable")
}

func TestBrokenStoreSurfacesError(t *testing.T) {
	matcher := catalog.NewMatcher(brokenSource{}, matchingSettings(), logging.NewNop())
	if _, err := matcher.Match(context.Background(), "Yona dancing"); err == nil {
		t.Fatal("expected a store error to surface for the caller to degrade")
	}
}
