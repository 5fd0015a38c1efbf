package relay

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/MegaGrindStone/study-buddy/internal/services"
	"go.uber.org/zap"
)

const maxUploadMemory = 32 << 20

var invalidUploadResponse = map[string]string{"error": "Invalid request"}

// HandleUpload saves the multipart "file" field under the upload directory, keeping only its base name.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondJSON(w, http.StatusBadRequest, invalidUploadResponse, h.logger)
		return
	}
	f, hdr, err := r.FormFile(services.UploadField)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, invalidUploadResponse, h.logger)
		return
	}
	defer f.Close()

	name := filepath.Base(filepath.Clean("/" + hdr.Filename))
	if name == "/" || name == "." {
		respondJSON(w, http.StatusBadRequest, invalidUploadResponse, h.logger)
		return
	}

	size, err := h.save(name, f)
	if err != nil {
		h.logger.Error("Failed to save upload",
			zap.String("fileName", name),
			zap.String("err", err.Error()))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save file"}, h.logger)
		return
	}

	err = h.uploads.AddUpload(r.Context(), models.Upload{
		FileName:   name,
		Size:       size,
		UploadedAt: time.Now(),
	})
	if err != nil {
		h.logger.Error("Failed to index upload",
			zap.String("fileName", name),
			zap.String("err", err.Error()))
	}

	respondJSON(w, http.StatusOK, models.UploadResult{
		Message:  "File uploaded successfully!",
		FileName: name,
	}, h.logger)
}

func (h *Handler) save(name string, content io.Reader) (int64, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create upload dir: %w", err)
	}

	dst, err := os.Create(filepath.Join(h.uploadDir, name))
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, content)
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

// HandleUploads lists indexed uploads, newest first.
func (h *Handler) HandleUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.uploads.Uploads(r.Context())
	if err != nil {
		h.logger.Error("Failed to list uploads", zap.String("err", err.Error()))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list uploads"}, h.logger)
		return
	}
	if uploads == nil {
		uploads = []models.Upload{}
	}
	respondJSON(w, http.StatusOK, uploads, h.logger)
}
