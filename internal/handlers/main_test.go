package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/study-buddy/internal/handlers"
	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/MegaGrindStone/study-buddy/internal/render"
	"github.com/MegaGrindStone/study-buddy/internal/services"
	"github.com/MegaGrindStone/study-buddy/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChatter struct {
	mu      sync.Mutex
	inputs  []string
	release chan struct{}

	reply string
	err   error
}

type mockUploader struct {
	mu      sync.Mutex
	names   []string
	content []string
	err     error
}

func newMockChatter(reply string, err error) *mockChatter {
	c := &mockChatter{release: make(chan struct{}), reply: reply, err: err}
	close(c.release)
	return c
}

func (c *mockChatter) Send(_ context.Context, _, chatInput string) (string, error) {
	c.mu.Lock()
	c.inputs = append(c.inputs, chatInput)
	c.mu.Unlock()

	<-c.release
	return c.reply, c.err
}

func (c *mockChatter) Inputs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.inputs...)
}

func (u *mockUploader) Upload(_ context.Context, fileName string, content io.Reader) (models.UploadResult, error) {
	b, err := io.ReadAll(content)
	if err != nil {
		return models.UploadResult{}, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, fileName)
	u.content = append(u.content, string(b))
	if u.err != nil {
		return models.UploadResult{}, u.err
	}
	return models.UploadResult{Message: "File uploaded successfully!", FileName: fileName}, nil
}

func newMain(t *testing.T, chatter session.Chatter, uploader handlers.Uploader) (handlers.Main, *session.Session) {
	t.Helper()

	sess := session.New("session_1_abc", chatter)
	m, err := handlers.NewMain(sess, render.NewMarkdown(), uploader, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})
	return m, sess
}

func postMessage(m handlers.Main, msg string) *httptest.ResponseRecorder {
	form := url.Values{"message": {msg}}
	req := httptest.NewRequest(http.MethodPost, "/chats", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	m.HandleChats(w, req)
	return w
}

func getHome(m handlers.Main) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	m.HandleHome(w, req)
	return w
}

func waitSettled(t *testing.T, sess *session.Session) {
	t.Helper()

	require.Eventually(t, func() bool { return !sess.Pending() }, 5*time.Second, 10*time.Millisecond)
}

func TestNewMain(t *testing.T) {
	sess := session.New("id", newMockChatter("", nil))
	m, err := handlers.NewMain(sess, render.NewMarkdown(), nil, zap.NewNop())
	require.NoError(t, err)

	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestHandleHomeEmpty(t *testing.T) {
	m, _ := newMain(t, newMockChatter("", nil), nil)

	w := getHome(m)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Start a conversation...")
	assert.Contains(t, body, `data-session-id="session_1_abc"`)
	assert.NotContains(t, body, `id="typing"`)
	assert.NotContains(t, body, `id="file-input"`)
}

func TestHandleHomeUnknownPath(t *testing.T) {
	m, _ := newMain(t, newMockChatter("", nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/favicon.ico", nil)
	w := httptest.NewRecorder()
	m.HandleHome(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleChats(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		message    string
		wantStatus int
		wantSent   bool
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Empty message",
			method:     http.MethodPost,
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Whitespace message",
			method:     http.MethodPost,
			message:    "   ",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Message",
			method:     http.MethodPost,
			message:    "Hello",
			wantStatus: http.StatusOK,
			wantSent:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatter := newMockChatter("Hi there", nil)
			m, sess := newMain(t, chatter, nil)

			form := url.Values{"message": {tt.message}}
			req := httptest.NewRequest(tt.method, "/chats", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			m.HandleChats(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			waitSettled(t, sess)
			if tt.wantSent {
				assert.Equal(t, []string{tt.message}, chatter.Inputs())
				assert.Len(t, sess.Messages(), 2)
			} else {
				assert.Empty(t, chatter.Inputs())
				assert.Empty(t, sess.Messages())
			}
		})
	}
}

func TestHandleChatsRespondsWithUserBubbleAndTyping(t *testing.T) {
	chatter := &mockChatter{release: make(chan struct{}), reply: "**Hello**"}
	m, sess := newMain(t, chatter, nil)

	w := postMessage(m, "<b>hi</b>")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "user-message")
	assert.Contains(t, body, "&lt;b&gt;hi&lt;/b&gt;")
	assert.Contains(t, body, `id="typing"`)

	assert.True(t, sess.Pending())
	home := getHome(m).Body.String()
	assert.Contains(t, home, `id="typing"`)
	assert.Contains(t, home, "disabled")

	close(chatter.release)
	waitSettled(t, sess)

	home = getHome(m).Body.String()
	assert.NotContains(t, home, `id="typing"`)
	assert.Contains(t, home, "<strong>Hello</strong>")
	assert.Less(t, strings.Index(home, "&lt;b&gt;hi"), strings.Index(home, "<strong>Hello</strong>"))
}

func TestHandleChatsWhilePending(t *testing.T) {
	chatter := &mockChatter{release: make(chan struct{}), reply: "first"}
	m, sess := newMain(t, chatter, nil)

	require.Equal(t, http.StatusOK, postMessage(m, "one").Code)
	assert.Equal(t, http.StatusNoContent, postMessage(m, "two").Code)
	assert.Equal(t, http.StatusNoContent, postMessage(m, "three").Code)

	close(chatter.release)
	waitSettled(t, sess)

	assert.Equal(t, []string{"one"}, chatter.Inputs())
	assert.Len(t, sess.Messages(), 2)
}

func TestHandleChatsServerError(t *testing.T) {
	chatter := newMockChatter("", &services.StatusError{StatusCode: http.StatusInternalServerError, Body: "server down"})
	m, sess := newMain(t, chatter, nil)

	require.Equal(t, http.StatusOK, postMessage(m, "hi").Code)
	waitSettled(t, sess)

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderBot, msgs[1].Sender)
	assert.Contains(t, msgs[1].Text, "500")
	assert.Contains(t, msgs[1].Text, "server down")

	home := getHome(m).Body.String()
	assert.Contains(t, home, "server down")
}

func TestHandleSSEPublishesSettledReply(t *testing.T) {
	chatter := &mockChatter{release: make(chan struct{}), reply: "**Done**"}
	m, sess := newMain(t, chatter, nil)

	srv := httptest.NewServer(http.HandlerFunc(m.HandleSSE))
	defer srv.Close()

	lines := make(chan string, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer close(lines)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		if err != nil {
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	require.Equal(t, http.StatusOK, postMessage(m, "finish it").Code)
	// Give the subscriber time to register before the reply is published.
	time.Sleep(300 * time.Millisecond)
	close(chatter.release)
	waitSettled(t, sess)

	var event strings.Builder
	timeout := time.After(5 * time.Second)
	for !strings.Contains(event.String(), "</strong>") {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed before reply")
			event.WriteString(line)
			event.WriteString("\n")
		case <-timeout:
			t.Fatalf("no reply event received, got %q", event.String())
		}
	}

	got := event.String()
	assert.Contains(t, got, "event: messages")
	assert.Contains(t, got, "bot-message")
	assert.Contains(t, got, "<strong>Done</strong>")
}

func getTranscript(m handlers.Main) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/transcript", nil)
	w := httptest.NewRecorder()
	m.HandleTranscript(w, req)
	return w
}

func TestHandleTranscriptCatchesUpAfterMissedReply(t *testing.T) {
	chatter := &mockChatter{release: make(chan struct{}), reply: "**Caught up**"}
	m, sess := newMain(t, chatter, nil)

	w := getTranscript(m)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Header().Get("X-Chat-Pending"))
	assert.Contains(t, w.Body.String(), "Start a conversation...")

	require.Equal(t, http.StatusOK, postMessage(m, "hello").Code)

	w = getTranscript(m)
	assert.Equal(t, "true", w.Header().Get("X-Chat-Pending"))
	assert.Contains(t, w.Body.String(), `id="typing"`)

	// No SSE subscriber is connected, so the published reply is dropped.
	close(chatter.release)
	waitSettled(t, sess)

	w = getTranscript(m)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Header().Get("X-Chat-Pending"))
	body := w.Body.String()
	assert.NotContains(t, body, `id="typing"`)
	assert.NotContains(t, body, "Start a conversation...")
	assert.Contains(t, body, "<strong>Caught up</strong>")
	assert.Contains(t, body, `id="transcript-end"`)
	assert.NotContains(t, body, "<form")
}

func TestHandleTranscriptMethodNotAllowed(t *testing.T) {
	m, _ := newMain(t, newMockChatter("", nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/transcript", nil)
	w := httptest.NewRecorder()
	m.HandleTranscript(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func uploadRequest(t *testing.T, field, name, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleUpload(t *testing.T) {
	uploader := &mockUploader{}
	m, sess := newMain(t, newMockChatter("", nil), uploader)

	assert.Contains(t, getHome(m).Body.String(), `id="file-input"`)

	w := httptest.NewRecorder()
	m.HandleUpload(w, uploadRequest(t, "file", "syllabus.pdf", "pdf bytes"))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"syllabus.pdf"}, uploader.names)
	assert.Equal(t, []string{"pdf bytes"}, uploader.content)
	assert.Empty(t, sess.Messages())
	assert.False(t, sess.Pending())
}

func TestHandleUploadFailureIsOnlyLogged(t *testing.T) {
	uploader := &mockUploader{err: errors.New("connection refused")}
	m, sess := newMain(t, newMockChatter("", nil), uploader)

	w := httptest.NewRecorder()
	m.HandleUpload(w, uploadRequest(t, "file", "a.txt", "a"))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, uploader.names, 1)
	assert.Empty(t, sess.Messages())
}

func TestHandleUploadDuringPendingChat(t *testing.T) {
	chatter := &mockChatter{release: make(chan struct{}), reply: "ok"}
	uploader := &mockUploader{}
	m, sess := newMain(t, chatter, uploader)

	require.Equal(t, http.StatusOK, postMessage(m, "hi").Code)

	w := httptest.NewRecorder()
	m.HandleUpload(w, uploadRequest(t, "file", "a.txt", "a"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, sess.Pending())
	assert.Len(t, sess.Messages(), 1)

	close(chatter.release)
	waitSettled(t, sess)
	assert.Len(t, sess.Messages(), 2)
}

func TestHandleUploadRejects(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		m, _ := newMain(t, newMockChatter("", nil), nil)
		w := httptest.NewRecorder()
		m.HandleUpload(w, uploadRequest(t, "file", "a.txt", "a"))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("wrong field", func(t *testing.T) {
		uploader := &mockUploader{}
		m, _ := newMain(t, newMockChatter("", nil), uploader)
		w := httptest.NewRecorder()
		m.HandleUpload(w, uploadRequest(t, "document", "a.txt", "a"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, uploader.names)
	})

	t.Run("wrong method", func(t *testing.T) {
		m, _ := newMain(t, newMockChatter("", nil), &mockUploader{})
		w := httptest.NewRecorder()
		m.HandleUpload(w, httptest.NewRequest(http.MethodGet, "/upload", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
