package catalog

import (
	"path/filepath"
	"regexp"
	"strings"
)

// actionVocabulary lists the action keywords recognized in scene descriptions
// and clip filenames.
var actionVocabulary = []string{
	"singing",
	"dancing",
	"walking",
	"running",
	"playing",
	// Instruments count as actions so "playing guitar" matches a clip
	// tagged with the instrument rather than the verb.
	"guitar",
	"piano",
	"drums",
	"jumping",
	"flying",
	"driving",
	"spinning",
	"crying",
	"laughing",
	"performing",
	"posing",
	"sitting",
	"standing",
}

// settingVocabulary lists the setting keywords recognized in scene
// descriptions and clip filenames.
var settingVocabulary = []string{
	"city",
	"stage",
	"rooftop",
	"beach",
	"forest",
	"street",
	"neon",
	"concert",
	"rain",
	"sunset",
	"night",
	"sky",
	"school",
	"park",
	"studio",
	"bedroom",
	"ocean",
	"mountain",
}

// phraseRules maps multi-word phrases to the setting tags they imply. Checked
// against the lowercased description before token matching.
var phraseRules = map[string][]string{
	"neon lights":   {"neon", "city"},
	"neon sign":     {"neon", "city"},
	"on stage":      {"stage", "concert"},
	"concert hall":  {"stage", "concert"},
	"city street":   {"city", "street"},
	"night sky":     {"night", "sky"},
	"rainy street":  {"rain", "street"},
	"school yard":   {"school", "park"},
	"ocean waves":   {"ocean", "beach"},
	"mountain peak": {"mountain", "sky"},
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Components are the semantic pieces extracted from a scene description or a
// clip filename.
type Components struct {
	Character string
	Actions   map[string]struct{}
	Settings  map[string]struct{}
}

// Empty reports whether nothing was extracted.
func (c Components) Empty() bool {
	return c.Character == "" && len(c.Actions) == 0 && len(c.Settings) == 0
}

// ParseDescription extracts components from free text. The character tag is
// set when the configured character name appears, case-insensitively.
func ParseDescription(description, character string) Components {
	lowered := strings.ToLower(description)
	comps := Components{
		Actions:  make(map[string]struct{}),
		Settings: make(map[string]struct{}),
	}

	if character != "" && strings.Contains(lowered, strings.ToLower(character)) {
		comps.Character = strings.ToLower(character)
	}

	for phrase, tags := range phraseRules {
		if strings.Contains(lowered, phrase) {
			for _, tag := range tags {
				comps.Settings[tag] = struct{}{}
			}
		}
	}

	tokens := make(map[string]struct{})
	for _, token := range tokenPattern.FindAllString(lowered, -1) {
		tokens[token] = struct{}{}
	}
	for _, action := range actionVocabulary {
		if _, ok := tokens[action]; ok {
			comps.Actions[action] = struct{}{}
		}
	}
	for _, setting := range settingVocabulary {
		if _, ok := tokens[setting]; ok {
			comps.Settings[setting] = struct{}{}
		}
	}
	return comps
}

// Filename conventions, newest first:
//
//	yona_dancing_city_001.mp4      character_action_setting_seq
//	scene_012_dancing_neon.mp4     scene_seq_action_setting (legacy)
//	clip_dancing_20240110.mp4      clip_action_date (legacy)
//
// Anything else falls back to vocabulary token matching over the whole name.
var (
	characterClipPattern = regexp.MustCompile(`^([a-z]+)_([a-z]+)_([a-z]+)_\d+$`)
	sceneClipPattern     = regexp.MustCompile(`^scene_\d+_([a-z]+)(?:_([a-z]+))?$`)
	legacyClipPattern    = regexp.MustCompile(`^clip_([a-z]+)_\d{8}$`)
)

// ParseFilename extracts components from a clip filename using the known
// naming conventions.
func ParseFilename(filename, character string) Components {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	comps := Components{
		Actions:  make(map[string]struct{}),
		Settings: make(map[string]struct{}),
	}

	if m := characterClipPattern.FindStringSubmatch(base); m != nil {
		if character != "" && m[1] == strings.ToLower(character) {
			comps.Character = m[1]
		}
		if isAction(m[2]) {
			comps.Actions[m[2]] = struct{}{}
		}
		if isSetting(m[3]) {
			comps.Settings[m[3]] = struct{}{}
		}
		if !comps.Empty() {
			return comps
		}
	}
	if m := sceneClipPattern.FindStringSubmatch(base); m != nil {
		if isAction(m[1]) {
			comps.Actions[m[1]] = struct{}{}
		}
		if m[2] != "" && isSetting(m[2]) {
			comps.Settings[m[2]] = struct{}{}
		}
		if !comps.Empty() {
			return comps
		}
	}
	if m := legacyClipPattern.FindStringSubmatch(base); m != nil {
		if isAction(m[1]) {
			comps.Actions[m[1]] = struct{}{}
			return comps
		}
	}

	return ParseDescription(strings.ReplaceAll(base, "_", " "), character)
}

func isAction(token string) bool {
	for _, action := range actionVocabulary {
		if token == action {
			return true
		}
	}
	return false
}

func isSetting(token string) bool {
	for _, setting := range settingVocabulary {
		if token == setting {
			return true
		}
	}
	return false
}
