package handlers

import (
	"context"
	"html/template"
	"io"
	"time"

	studybuddy "github.com/MegaGrindStone/study-buddy"
	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/MegaGrindStone/study-buddy/internal/session"
	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"
)

// Renderer turns a transcript entry into the HTML shown inside its bubble.
type Renderer interface {
	Message(msg models.Message) (template.HTML, error)
}

// Uploader sends a selected file to the upload endpoint.
type Uploader interface {
	Upload(ctx context.Context, fileName string, content io.Reader) (models.UploadResult, error)
}

// Main serves the web client for a single chat session: the page, chat submissions, file uploads and the
// server-sent events that deliver settled replies.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	session  *session.Session
	renderer Renderer
	uploader Uploader

	logger *zap.Logger
}

const errLoggerKey = "err"

// NewMain creates a new Main for sess. A nil uploader hides the upload control and disables the upload
// route.
func NewMain(sess *session.Session, renderer Renderer, uploader Uploader, logger *zap.Logger) (Main, error) {
	tmpl, err := template.ParseFS(
		studybuddy.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		sseSrv:    &sse.Server{},
		templates: tmpl,
		session:   sess,
		renderer:  renderer,
		uploader:  uploader,
		logger:    logger.With(zap.String("module", "handlers")),
	}, nil
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected clients
// and waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// SSE requires data on every event.
	e.AppendData("bye")

	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
