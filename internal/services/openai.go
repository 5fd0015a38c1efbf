package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAI provides an implementation of the relay's LLM interface for OpenAI-compatible chat completion
// APIs.
type OpenAI struct {
	model        string
	systemPrompt string

	client *goopenai.Client

	logger *zap.Logger
}

// NewOpenAI creates a new OpenAI instance. An empty baseURL keeps the library default.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string, logger *zap.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		client:       goopenai.NewClientWithConfig(cfg),
		logger:       logger.With(zap.String("module", "openai")),
	}
}

func openAIMessages(systemPrompt string, turns []models.Turn) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(turns)+1)
	if systemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, turn := range turns {
		role := goopenai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	return msgs
}

// Chat streams the completion for the conversation in turns.
func (o OpenAI) Chat(ctx context.Context, turns []models.Turn) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := goopenai.ChatCompletionRequest{
			Model:    o.model,
			Messages: openAIMessages(o.systemPrompt, turns),
			Stream:   true,
		}

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			o.logger.Error("Failed to create stream", zap.String("err", err.Error()))
			yield("", fmt.Errorf("error creating chat completion stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("error receiving chat completion stream: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if !yield(resp.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}
