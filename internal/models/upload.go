package models

import "time"

// UploadResult is the JSON body the upload endpoint answers with on success.
type UploadResult struct {
	Message  string `json:"message"`
	FileName string `json:"file_name"`
}

// Upload is a file recorded by the relay's upload index.
type Upload struct {
	FileName   string    `json:"file_name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}
