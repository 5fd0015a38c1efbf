package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// Ollama provides an implementation of the relay's LLM interface backed by an Ollama server.
type Ollama struct {
	model        string
	systemPrompt string

	client *api.Client

	logger *zap.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host must be a
// valid URL pointing to an Ollama server.
func NewOllama(host, model, systemPrompt string, logger *zap.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		model:        model,
		systemPrompt: systemPrompt,
		client:       api.NewClient(u, &http.Client{}),
		logger:       logger.With(zap.String("module", "ollama")),
	}, nil
}

// Chat streams the model's answer to the conversation in turns. The iterator yields response chunks and
// stops after the first error.
func (o Ollama) Chat(ctx context.Context, turns []models.Turn) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]api.Message, len(turns))
		for i, turn := range turns {
			msgs[i] = api.Message{
				Role:    string(turn.Role),
				Content: turn.Content,
			}
		}
		if o.systemPrompt != "" {
			msgs = slices.Insert(msgs, 0, api.Message{
				Role:    "system",
				Content: o.systemPrompt,
			})
		}

		t := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   &t,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if !yield(res.Message.Content, nil) {
				cancel()
			}
			return nil
		}); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			o.logger.Error("Chat request failed", zap.String("err", err.Error()))
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}
