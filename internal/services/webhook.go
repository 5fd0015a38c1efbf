package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Webhook forwards chat inputs to an n8n-style workflow webhook, which owns the conversation memory keyed
// by session identifier and answers with plain text.
type Webhook struct {
	url    string
	client *http.Client
}

type webhookRequest struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
	ChatInput string `json:"chatInput"`
}

const webhookActionSendMessage = "sendMessage"

// NewWebhook creates a Webhook posting to url. If client is nil, a client without timeout is used.
func NewWebhook(url string, client *http.Client) Webhook {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return Webhook{
		url:    url,
		client: client,
	}
}

// Reply posts the input to the webhook and returns its plain-text answer.
func (w Webhook) Reply(ctx context.Context, sessionID, chatInput string) (string, error) {
	body, err := json.Marshal(webhookRequest{
		SessionID: sessionID,
		Action:    webhookActionSendMessage,
		ChatInput: chatInput,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
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
