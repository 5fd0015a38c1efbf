package handlers

import (
	"context"
	"net/http"

	"github.com/MegaGrindStone/study-buddy/internal/services"
	"go.uber.org/zap"
)

const maxUploadMemory = 32 << 20

// HandleUpload forwards the selected file to the upload endpoint as soon as it is picked. The outcome is
// only logged: the transcript and the pending state are never touched.
func (m Main) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if m.uploader == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", zap.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		m.logger.Error("Failed to parse upload form", zap.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	f, hdr, err := r.FormFile(services.UploadField)
	if err != nil {
		m.logger.Error("Upload without file", zap.String(errLoggerKey, err.Error()))
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer f.Close()

	res, err := m.uploader.Upload(context.WithoutCancel(r.Context()), hdr.Filename, f)
	if err != nil {
		m.logger.Error("Error uploading file",
			zap.String("fileName", hdr.Filename),
			zap.String(errLoggerKey, err.Error()))
	} else {
		m.logger.Info("File uploaded successfully", zap.String("fileName", res.FileName))
	}

	w.WriteHeader(http.StatusNoContent)
}
