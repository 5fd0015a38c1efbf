package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"
)

// Anthropic streams replies from the Anthropic Messages API.
type Anthropic struct {
	apiKey       string
	model        string
	maxTokens    int
	systemPrompt string
	endpoint     string

	client *http.Client
	logger *zap.Logger
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint   = "https://api.anthropic.com/v1"
	anthropicDefaultTokens = 1024
	anthropicVersionHeader = "2023-06-01"
)

// NewAnthropic creates a new Anthropic upstream. An empty baseURL selects the public API and a
// non-positive maxTokens falls back to 1024.
func NewAnthropic(apiKey, baseURL, model string, maxTokens int, systemPrompt string, logger *zap.Logger) Anthropic {
	if baseURL == "" {
		baseURL = anthropicAPIEndpoint
	}
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultTokens
	}
	return Anthropic{
		apiKey:       apiKey,
		model:        model,
		maxTokens:    maxTokens,
		systemPrompt: systemPrompt,
		endpoint:     strings.TrimSuffix(baseURL, "/") + "/messages",
		client:       NewHTTPClient(0),
		logger:       logger.With(zap.String("module", "anthropic")),
	}
}

// Chat streams the answer to turns. The iterator yields text deltas and stops after the first error.
func (a Anthropic) Chat(ctx context.Context, turns []models.Turn) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]anthropicMessage, len(turns))
		for i, turn := range turns {
			msgs[i] = anthropicMessage{
				Role:    string(turn.Role),
				Content: turn.Content,
			}
		}

		jsonBody, err := json.Marshal(anthropicChatRequest{
			Model:     a.model,
			Messages:  msgs,
			System:    a.systemPrompt,
			MaxTokens: a.maxTokens,
			Stream:    true,
		})
		if err != nil {
			yield("", fmt.Errorf("error marshaling request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewBuffer(jsonBody))
		if err != nil {
			yield("", fmt.Errorf("error creating request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", anthropicVersionHeader)

		resp, err := a.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if !successStatus(resp.StatusCode) {
			var e anthropicError
			if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error.Message != "" {
				yield("", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			}
			yield("", &StatusError{StatusCode: resp.StatusCode})
			return
		}

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}
			switch ev.Type {
			case "error":
				var e anthropicError
				if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
					yield("", fmt.Errorf("error unmarshaling error: %w", err))
					return
				}
				a.logger.Error("Stream failed", zap.String("type", e.Error.Type), zap.String("err", e.Error.Message))
				yield("", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			case "message_stop":
				return
			case "content_block_delta":
				var res anthropicStreamResponse
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					yield("", fmt.Errorf("error unmarshaling response: %w", err))
					return
				}
				if !yield(res.Delta.Text, nil) {
					return
				}
			}
		}
	}
}
