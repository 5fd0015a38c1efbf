package relay

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Handler serves the relay endpoints.
type Handler struct {
	upstream  Upstream
	uploads   UploadStore
	uploadDir string

	logger *zap.Logger
}

// NewHandler creates a Handler forwarding chat inputs to upstream and saving uploads under uploadDir.
func NewHandler(upstream Upstream, uploads UploadStore, uploadDir string, logger *zap.Logger) *Handler {
	return &Handler{
		upstream:  upstream,
		uploads:   uploads,
		uploadDir: uploadDir,
		logger:    logger.With(zap.String("module", "relay")),
	}
}

// NewRouter wires the relay routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HandleHealth)
	r.HandleFunc("/chat/chat/", h.HandleChat)
	r.Post("/upload/", h.HandleUpload)
	r.Get("/upload/", h.HandleUploads)

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("Request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(r.Context())))
		})
	}
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}
