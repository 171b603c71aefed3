// Package scriptgen produces scene scripts for songs via a chat-completions
// style API. Calls are single-shot; retry and circuit breaking live with the
// caller's resilience guard.
package scriptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"songreel/internal/config"
	"songreel/internal/script"
	"songreel/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// systemPrompt steers the model toward the script JSON the pipeline expects.
const systemPrompt = `You are a creative anime music video director. Create a detailed scene-by-scene script for an anime-style music video featuring %s, a cartoon K-pop star.
Respond with JSON only, shaped as:
{"metadata":{"title":string,"artist":string,"mood":string,"bpm":number,"duration":number},"scenes":[{"start_time":number,"end_time":number,"description":string,"prompt":string,"transition":string}]}
Scenes must cover the song in order, each with a vivid visual description and a concise generation prompt.`

// Request carries the song fields the generator builds its prompt from.
type Request struct {
	Title       string
	Artist      string
	Genre       string
	Mood        string
	Style       string
	Description string
	Duration    float64
}

// Client talks to the script generation API.
type Client struct {
	cfg        config.ScriptGen
	character  string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. Used in tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a script generation client.
func New(cfg config.ScriptGen, character string, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		character:  character,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate requests a scene script for the song and validates the result.
func (c *Client) Generate(ctx context.Context, req Request) (*script.Script, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("scriptgen: %w: title required", services.ErrValidation)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, fmt.Errorf("scriptgen: %w: api key required", services.ErrConfiguration)
	}
	if req.Artist == "" {
		req.Artist = c.character
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, c.character)},
			{Role: "user", Content: c.userMessage(req)},
		},
		Temperature:    0.7,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("scriptgen: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scriptgen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scriptgen: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("scriptgen: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scriptgen: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("scriptgen: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("scriptgen: api error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("scriptgen: empty response")
	}
	choice := decoded.Choices[0]
	if choice.Message.Content == "" {
		return nil, fmt.Errorf("scriptgen: empty content (finish_reason=%q, refusal=%q)", choice.FinishReason, choice.Message.Refusal)
	}

	result, err := script.Decode(choice.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("scriptgen: %w", err)
	}
	return result, nil
}

func (c *Client) userMessage(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a music video script for the song %q by %s.\n\n", req.Title, req.Artist)
	if req.Genre != "" {
		fmt.Fprintf(&b, "Genre: %s\n", req.Genre)
	}
	if req.Mood != "" {
		fmt.Fprintf(&b, "Mood: %s\n", req.Mood)
	}
	if req.Style != "" {
		fmt.Fprintf(&b, "Visual style: %s\n", req.Style)
	}
	if req.Description != "" {
		fmt.Fprintf(&b, "Song description: %s\n", req.Description)
	}
	if req.Duration > 0 {
		fmt.Fprintf(&b, "Song duration: %.0f seconds\n", req.Duration)
	}
	return b.String()
}
