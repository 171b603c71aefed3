package catalog

import "testing"

func TestParseDescriptionExtractsComponents(t *testing.T) {
	comps := ParseDescription("Yona dancing under neon lights in the city", "Yona")
	if comps.Character != "yona" {
		t.Fatalf("expected character tag, got %q", comps.Character)
	}
	if _, ok := comps.Actions["dancing"]; !ok {
		t.Fatalf("expected dancing action, got %v", comps.Actions)
	}
	for _, want := range []string{"neon", "city"} {
		if _, ok := comps.Settings[want]; !ok {
			t.Fatalf("expected %q setting from phrase rule, got %v", want, comps.Settings)
		}
	}
}

func TestParseDescriptionExtractsInstrumentActions(t *testing.T) {
	comps := ParseDescription("Yona playing guitar on stage", "Yona")
	for _, want := range []string{"playing", "guitar"} {
		if _, ok := comps.Actions[want]; !ok {
			t.Fatalf("expected %q action, got %v", want, comps.Actions)
		}
	}
	if _, ok := comps.Settings["stage"]; !ok {
		t.Fatalf("expected stage setting, got %v", comps.Settings)
	}
}

func TestParseDescriptionWithoutCharacter(t *testing.T) {
	comps := ParseDescription("a crowd walking through a rainy street", "Yona")
	if comps.Character != "" {
		t.Fatalf("expected no character tag, got %q", comps.Character)
	}
	if _, ok := comps.Actions["walking"]; !ok {
		t.Fatalf("expected walking action, got %v", comps.Actions)
	}
	if _, ok := comps.Settings["street"]; !ok {
		t.Fatalf("expected street setting, got %v", comps.Settings)
	}
}

func TestParseFilenameCharacterConvention(t *testing.T) {
	comps := ParseFilename("/clips/yona_dancing_city_001.mp4", "Yona")
	if comps.Character != "yona" {
		t.Fatalf("expected character, got %q", comps.Character)
	}
	if _, ok := comps.Actions["dancing"]; !ok {
		t.Fatalf("expected dancing action, got %v", comps.Actions)
	}
	if _, ok := comps.Settings["city"]; !ok {
		t.Fatalf("expected city setting, got %v", comps.Settings)
	}
}

func TestParseFilenameSceneConvention(t *testing.T) {
	comps := ParseFilename("scene_012_singing_rooftop.mp4", "Yona")
	if _, ok := comps.Actions["singing"]; !ok {
		t.Fatalf("expected singing action, got %v", comps.Actions)
	}
	if _, ok := comps.Settings["rooftop"]; !ok {
		t.Fatalf("expected rooftop setting, got %v", comps.Settings)
	}
}

func TestParseFilenameLegacyClipConvention(t *testing.T) {
	comps := ParseFilename("clip_running_20240110.mp4", "Yona")
	if _, ok := comps.Actions["running"]; !ok {
		t.Fatalf("expected running action, got %v", comps.Actions)
	}
}

func TestParseFilenameFallsBackToTokens(t *testing.T) {
	comps := ParseFilename("yona_laughing_in_the_rain_final.mp4", "Yona")
	if comps.Character != "yona" {
		t.Fatalf("expected character from token fallback, got %q", comps.Character)
	}
	if _, ok := comps.Actions["laughing"]; !ok {
		t.Fatalf("expected laughing action, got %v", comps.Actions)
	}
	if _, ok := comps.Settings["rain"]; !ok {
		t.Fatalf("expected rain setting, got %v", comps.Settings)
	}
}
