// Package relay is the backend the chat client talks to. It validates chat requests, forwards them to the
// configured upstream and stores uploaded files.
package relay

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/google/uuid"
)

// Upstream produces the reply to one chat input of a session.
type Upstream interface {
	Reply(ctx context.Context, sessionID, chatInput string) (string, error)
}

// LLM represents a language model that streams the answer to a conversation.
type LLM interface {
	Chat(ctx context.Context, turns []models.Turn) iter.Seq2[string, error]
}

// ConversationStore keeps the turns of every session the relay has seen.
type ConversationStore interface {
	Turns(ctx context.Context, sessionID string) ([]models.Turn, error)
	AddTurn(ctx context.Context, sessionID string, turn models.Turn) (string, error)
}

// UploadStore indexes files saved by the upload endpoint.
type UploadStore interface {
	AddUpload(ctx context.Context, upload models.Upload) error
	Uploads(ctx context.Context) ([]models.Upload, error)
}

// Conversation adapts an LLM to Upstream. The session identifier selects the stored conversation, so every
// reply is generated with the full history of that session.
type Conversation struct {
	llm   LLM
	store ConversationStore
}

// NewConversation creates an Upstream backed by llm whose history lives in store.
func NewConversation(llm LLM, store ConversationStore) Conversation {
	return Conversation{
		llm:   llm,
		store: store,
	}
}

// Reply records the input, collects the streamed answer and records it too. A failed generation leaves
// the user turn in place so the next input still sees it.
func (c Conversation) Reply(ctx context.Context, sessionID, chatInput string) (string, error) {
	_, err := c.store.AddTurn(ctx, sessionID, models.Turn{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   chatInput,
		Timestamp: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to add user turn: %w", err)
	}

	turns, err := c.store.Turns(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to get turns: %w", err)
	}

	var sb strings.Builder
	for chunk, err := range c.llm.Chat(ctx, turns) {
		if err != nil {
			return "", fmt.Errorf("failed to generate reply: %w", err)
		}
		sb.WriteString(chunk)
	}
	reply := sb.String()

	_, err = c.store.AddTurn(ctx, sessionID, models.Turn{
		ID:        uuid.New().String(),
		Role:      models.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to add assistant turn: %w", err)
	}

	return reply, nil
}
