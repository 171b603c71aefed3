package catalog

import "time"

// Clip is one catalog entry for a generated video clip on disk.
type Clip struct {
	ID       int64
	Path     string
	Filename string
	Filesize int64

	// Parsed semantic components. Empty fields mean the component could not
	// be derived from the filename or prompt.
	Character  string
	Action     string
	Setting    string
	DetailTags []string

	// AIDescription is the generation prompt; ManualDescription is the scene
	// description the clip was produced for, when known.
	AIDescription     string
	ManualDescription string

	DurationSeconds float64
	UsageCount      int64
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

// Match is a reuse decision returned by the matcher.
type Match struct {
	Clip  *Clip
	Score float64
}
