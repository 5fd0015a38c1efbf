package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"go.uber.org/zap"
)

const pendingHeader = "X-Chat-Pending"

type message struct {
	Sender    string
	Content   template.HTML
	Timestamp time.Time
}

type homePageData struct {
	SessionID     string
	Messages      []message
	Pending       bool
	UploadEnabled bool
}

// HandleHome renders the whole page: the transcript so far, the typing indicator if a reply is pending,
// and the composer.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data, err := m.pageData()
	if err != nil {
		m.logger.Error("Failed to render message", zap.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", zap.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleTranscript renders only the transcript, with the pending state in the X-Chat-Pending header.
// The page reloads it whenever its event stream (re)connects, so a reply that settled while no stream
// was open still reaches it.
func (m Main) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.logger.Error("Method not allowed", zap.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := m.pageData()
	if err != nil {
		m.logger.Error("Failed to render message", zap.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(pendingHeader, strconv.FormatBool(data.Pending))
	if err := m.templates.ExecuteTemplate(w, "transcript", data); err != nil {
		m.logger.Error("Failed to execute transcript template", zap.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) pageData() (homePageData, error) {
	msgs, pending := m.session.Snapshot()

	data := homePageData{
		SessionID:     m.session.ID(),
		Messages:      make([]message, 0, len(msgs)),
		Pending:       pending,
		UploadEnabled: m.uploader != nil,
	}
	for _, msg := range msgs {
		rendered, err := m.renderMessage(msg)
		if err != nil {
			return homePageData{}, err
		}
		data.Messages = append(data.Messages, rendered)
	}
	return data, nil
}

func (m Main) renderMessage(msg models.Message) (message, error) {
	content, err := m.renderer.Message(msg)
	if err != nil {
		return message{}, fmt.Errorf("failed to render %s message: %w", msg.Sender, err)
	}
	return message{
		Sender:    string(msg.Sender),
		Content:   content,
		Timestamp: msg.Timestamp,
	}, nil
}
