package scriptgen_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"songreel/internal/config"
	"songreel/internal/scriptgen"
	"songreel/internal/services"
)

const validScriptJSON = `{
  "metadata": {"title": "Midnight Drive", "artist": "Yona", "mood": "dreamy", "duration": 30},
  "scenes": [
    {"start_time": 0, "end_time": 10, "description": "Yona singing on a rooftop", "prompt": "anime girl singing, rooftop at night"},
    {"start_time": 10, "end_time": 30, "description": "Yona dancing in a neon city", "prompt": "anime girl dancing, neon city"}
  ]
}`

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func newClient(t *testing.T, handler http.HandlerFunc) *scriptgen.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.ScriptGen{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	}
	return scriptgen.New(cfg, "Yona", scriptgen.WithHTTPClient(server.Client()))
}

func TestGenerateParsesScript(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(validScriptJSON)))
	})

	result, err := client.Generate(context.Background(), scriptgen.Request{
		Title:    "Midnight Drive",
		Mood:     "dreamy",
		Duration: 30,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(result.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(result.Scenes))
	}
	if result.Metadata.Artist != "Yona" {
		t.Fatalf("unexpected artist %q", result.Metadata.Artist)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["model"] != "test-model" {
		t.Fatalf("unexpected model %v", gotBody["model"])
	}
}

func TestGenerateRejectsInvalidScript(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionBody(`{"metadata":{},"scenes":[]}`)))
	})

	if _, err := client.Generate(context.Background(), scriptgen.Request{Title: "Bad"}); err == nil {
		t.Fatal("expected validation failure for empty script")
	}
}

func TestGenerateSurfacesHTTPError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Generate(context.Background(), scriptgen.Request{Title: "Busy"})
	if err == nil {
		t.Fatal("expected HTTP error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status code in error, got %v", err)
	}
}

func TestGenerateRequiresTitleAndKey(t *testing.T) {
	client := scriptgen.New(config.ScriptGen{BaseURL: "http://unused", Model: "m"}, "Yona")
	_, err := client.Generate(context.Background(), scriptgen.Request{Title: "x"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing api key, got %v", err)
	}

	keyed := scriptgen.New(config.ScriptGen{APIKey: "k", BaseURL: "http://unused", Model: "m"}, "Yona")
	_, err = keyed.Generate(context.Background(), scriptgen.Request{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing title, got %v", err)
	}
}
