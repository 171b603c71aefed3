package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"songreel/internal/config"
	"songreel/internal/logging"
)

// ClipSource is the catalog access the matcher needs. *Store satisfies it.
type ClipSource interface {
	List(ctx context.Context) ([]*Clip, error)
	Add(ctx context.Context, clip Clip) (*Clip, error)
	IncrementUsage(ctx context.Context, id int64) error
}

// stopWords are skipped during filename fallback matching.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {},
	"in": {}, "on": {}, "at": {}, "of": {}, "to": {},
	"with": {}, "is": {}, "her": {}, "his": {}, "it": {},
}

// Matcher scores catalog clips against scene descriptions for one pipeline
// run. Run-local usage feeds the diversity penalty, so build a fresh Matcher
// per song.
type Matcher struct {
	source   ClipSource
	settings config.Matching
	logger   *slog.Logger
	runUses  map[int64]int
}

// NewMatcher builds a matcher for a single song run.
func NewMatcher(source ClipSource, settings config.Matching, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{
		source:   source,
		settings: settings,
		logger:   logger,
		runUses:  make(map[int64]int),
	}
}

// Match decides whether an existing clip can serve the scene. A nil Match
// with a nil error means no reuse candidate cleared the floor, which is a
// normal outcome; errors are raised only for a broken catalog store and the
// caller treats them as no match.
func (m *Matcher) Match(ctx context.Context, sceneDescription string) (*Match, error) {
	clips, err := m.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog clips: %w", err)
	}
	if len(clips) == 0 {
		return nil, nil
	}

	comps := ParseDescription(sceneDescription, m.settings.Character)

	type candidate struct {
		clip  *Clip
		score float64
	}
	candidates := make([]candidate, 0, len(clips))
	for _, clip := range clips {
		base := m.componentScore(comps, clip)
		if clip.ManualDescription != "" {
			if overlap := textOverlapScore(sceneDescription, clip.ManualDescription); overlap > base {
				base = overlap
			}
		}
		score := base - m.diversityPenalty(clip.ID)
		if score < 0 {
			score = 0
		}
		candidates = append(candidates, candidate{clip: clip, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	best := candidates[0]
	if best.score > m.settings.ReuseThreshold {
		m.markUsed(ctx, best.clip)
		m.logger.Debug("reusing catalog clip",
			logging.Int64("clip_id", best.clip.ID),
			logging.String("clip", best.clip.Filename),
			logging.Float64("score", best.score),
		)
		return &Match{Clip: best.clip, Score: best.score}, nil
	}

	if fallback := m.filenameFallback(comps, sceneDescription, clips); fallback != nil {
		m.markUsed(ctx, fallback)
		m.logger.Debug("reusing catalog clip via filename fallback",
			logging.Int64("clip_id", fallback.ID),
			logging.String("clip", fallback.Filename),
		)
		return &Match{Clip: fallback, Score: m.settings.ReuseThreshold}, nil
	}

	return nil, nil
}

// componentScore compares parsed scene components against the clip's
// metadata. A weight counts toward the divisor only when the scene component
// is non-empty and the clip carries the matching field, and the divisor is
// floored at 0.1 so clips with almost no metadata cannot score high by
// accident.
func (m *Matcher) componentScore(scene Components, clip *Clip) float64 {
	var accumulated, considered float64

	if scene.Character != "" && clip.Character != "" {
		considered += m.settings.CharacterWeight
		if strings.EqualFold(scene.Character, clip.Character) {
			accumulated += m.settings.CharacterWeight
		}
	}
	if len(scene.Actions) > 0 && clip.Action != "" {
		considered += m.settings.ActionWeight
		if _, ok := scene.Actions[strings.ToLower(clip.Action)]; ok {
			accumulated += m.settings.ActionWeight
		}
	}
	if len(scene.Settings) > 0 && clip.Setting != "" {
		considered += m.settings.SettingWeight
		if _, ok := scene.Settings[strings.ToLower(clip.Setting)]; ok {
			accumulated += m.settings.SettingWeight
		}
	}
	if len(scene.Settings) > 0 && len(clip.DetailTags) > 0 {
		considered += m.settings.DetailWeight
		for _, tag := range clip.DetailTags {
			if _, ok := scene.Settings[strings.ToLower(tag)]; ok {
				accumulated += m.settings.DetailWeight
				break
			}
		}
	}

	if considered < 0.1 {
		considered = 0.1
	}
	return accumulated / considered
}

// textOverlapScore is the fraction of the scene description's distinct words
// that also appear in the manual description.
func textOverlapScore(sceneDescription, manualDescription string) float64 {
	sceneWords := distinctWords(sceneDescription)
	if len(sceneWords) == 0 {
		return 0
	}
	manualWords := distinctWords(manualDescription)
	matched := 0
	for word := range sceneWords {
		if _, ok := manualWords[word]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(sceneWords))
}

func distinctWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		words[token] = struct{}{}
	}
	return words
}

func (m *Matcher) diversityPenalty(clipID int64) float64 {
	penalty := float64(m.runUses[clipID]) * m.settings.DiversityPenalty
	if penalty > m.settings.DiversityCap {
		penalty = m.settings.DiversityCap
	}
	return penalty
}

// filenameFallback looks for scene keywords appearing verbatim in clip
// filenames, preferring clips used fewer than twice in this run.
func (m *Matcher) filenameFallback(scene Components, sceneDescription string, clips []*Clip) *Clip {
	keywords := make([]string, 0, len(scene.Actions)+len(scene.Settings))
	for action := range scene.Actions {
		keywords = append(keywords, action)
	}
	for setting := range scene.Settings {
		keywords = append(keywords, setting)
	}
	if len(keywords) == 0 {
		for word := range distinctWords(sceneDescription) {
			if _, stop := stopWords[word]; stop || len(word) < 4 {
				continue
			}
			keywords = append(keywords, word)
		}
	}
	if len(keywords) == 0 {
		return nil
	}
	sort.Strings(keywords)

	var fallback *Clip
	for _, clip := range clips {
		name := strings.ToLower(clip.Filename)
		for _, keyword := range keywords {
			if _, stop := stopWords[keyword]; stop {
				continue
			}
			if !strings.Contains(name, keyword) {
				continue
			}
			if m.runUses[clip.ID] < 2 {
				return clip
			}
			if fallback == nil {
				fallback = clip
			}
		}
	}
	return fallback
}

func (m *Matcher) markUsed(ctx context.Context, clip *Clip) {
	m.runUses[clip.ID]++
	if err := m.source.IncrementUsage(ctx, clip.ID); err != nil {
		// Usage bookkeeping must never block the pipeline.
		m.logger.Warn("increment clip usage failed",
			logging.Int64("clip_id", clip.ID),
			logging.Error(err),
		)
	}
}

// Index records a freshly generated clip so later scenes can reuse it. The
// filename is parsed with the same vocabulary logic used for scenes; the
// generation prompt becomes the AI description and the scene description the
// manual one.
func (m *Matcher) Index(ctx context.Context, path, prompt, sceneDescription string, durationSeconds float64) (*Clip, error) {
	comps := ParseFilename(path, m.settings.Character)

	clip := Clip{
		Path:              path,
		Filename:          filepath.Base(path),
		Character:         comps.Character,
		AIDescription:     prompt,
		ManualDescription: sceneDescription,
		DurationSeconds:   durationSeconds,
	}
	// Size is best effort; a clip that has already moved still gets indexed.
	if info, err := os.Stat(path); err == nil {
		clip.Filesize = info.Size()
	}
	actions := make([]string, 0, len(comps.Actions))
	for action := range comps.Actions {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	if len(actions) > 0 {
		clip.Action = actions[0]
	}

	settings := make([]string, 0, len(comps.Settings))
	for setting := range comps.Settings {
		settings = append(settings, setting)
	}
	sort.Strings(settings)
	if len(settings) > 0 {
		clip.Setting = settings[0]
		clip.DetailTags = settings[1:]
	}

	stored, err := m.source.Add(ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("index clip: %w", err)
	}
	return stored, nil
}
