package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ChatEndpoint posts chat inputs to the remote chat service. It implements the session's Chatter.
type ChatEndpoint struct {
	url    string
	client *http.Client
}

// ChatRequest is the canonical JSON body sent to the chat endpoint.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	ChatInput string `json:"chatInput"`
}

// StatusError describes a chat or upload endpoint answering with a non-2xx status. Body holds the
// response text verbatim.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d, message: %s", e.StatusCode, e.Body)
}

// NewChatEndpoint creates a ChatEndpoint for url. If client is nil, a client without timeout is used.
func NewChatEndpoint(url string, client *http.Client) ChatEndpoint {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return ChatEndpoint{
		url:    url,
		client: client,
	}
}

// Send posts {sessionId, chatInput} and returns the whole response body as the reply text.
func (c ChatEndpoint) Send(ctx context.Context, sessionID, chatInput string) (string, error) {
	body, err := json.Marshal(ChatRequest{
		SessionID: sessionID,
		ChatInput: chatInput,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	if !successStatus(resp.StatusCode) {
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return string(respBody), nil
}

func successStatus(code int) bool {
	return code >= 200 && code < 300
}
