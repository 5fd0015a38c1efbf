package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/MegaGrindStone/study-buddy/internal/models"
)

// UploadField is the multipart field name the file is sent under.
const UploadField = "file"

// Uploader sends files to the upload endpoint. It shares nothing with the chat flow.
type Uploader struct {
	url    string
	client *http.Client
}

// NewUploader creates an Uploader for url. If client is nil, a client without timeout is used.
func NewUploader(url string, client *http.Client) Uploader {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return Uploader{
		url:    url,
		client: client,
	}
}

// Upload streams content as multipart field "file" named fileName, in a single request.
func (u Uploader) Upload(ctx context.Context, fileName string, content io.Reader) (models.UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(UploadField, fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, pr)
	if err != nil {
		pr.Close()
		return models.UploadResult{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		pr.Close()
		return models.UploadResult{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("error reading response: %w", err)
	}

	if !successStatus(resp.StatusCode) {
		return models.UploadResult{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var res models.UploadResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		return models.UploadResult{}, fmt.Errorf("error decoding response: %w", err)
	}
	return res, nil
}
