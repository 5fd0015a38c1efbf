package handlers

import (
	"net/http"
	"strings"

	"github.com/MegaGrindStone/study-buddy/internal/session"
	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"
)

// SSE event types for settled replies.
var (
	messagesSSEType = sse.Type("messages")
)

// HandleChats submits the "message" form field through the session.
//
// Blank input and submissions made while a reply is pending are ignored with 204 No Content. Otherwise the
// response carries the user bubble followed by the typing indicator, and the bot bubble is pushed over SSE
// once the exchange settles.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", zap.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ex, ok := m.session.Send(r.Context(), r.FormValue("message"))
	if !ok {
		m.logger.Debug("Submission ignored", zap.Bool("pending", m.session.Pending()))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	go m.publishReply(ex)

	userMsg, err := m.renderMessage(ex.Request)
	if err != nil {
		m.logger.Error("Failed to render user message", zap.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "message", userMsg); err != nil {
		m.logger.Error("Failed to execute message template", zap.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "typing", nil); err != nil {
		m.logger.Error("Failed to execute typing template", zap.String(errLoggerKey, err.Error()))
	}
}

// HandleSSE streams settled replies to connected pages.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

func (m Main) publishReply(ex *session.Exchange) {
	<-ex.Done()

	reply, err := m.renderMessage(ex.Reply())
	if err != nil {
		m.logger.Error("Failed to render reply", zap.String(errLoggerKey, err.Error()))
		return
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "message", reply); err != nil {
		m.logger.Error("Failed to execute message template", zap.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: messagesSSEType,
	}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg); err != nil {
		m.logger.Error("Failed to publish reply", zap.String(errLoggerKey, err.Error()))
	}
}
