// Package server implements the file-upload endpoint. Uploaded files are
// stored under collision-proof names and served statically; the chat core
// only ever sees text messages referencing the returned URL.
package server

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// allowedUploadExts is the upload allow-list:
// images, video, and common document formats.
var allowedUploadExts = map[string]struct{}{
	".jpeg": {}, ".jpg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".mp4": {}, ".avi": {}, ".mov": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".txt": {},
}

// allowedUploadMIMEs is the declared-type counterpart of allowedUploadExts.
// Both the extension and the declared Content-Type must pass.
var allowedUploadMIMEs = map[string]struct{}{
	"image/jpeg": {}, "image/png": {}, "image/gif": {}, "image/webp": {},
	"video/mp4": {}, "video/x-msvideo": {}, "video/quicktime": {},
	"application/pdf": {}, "application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
}

// UploadInfo is the response body for a stored upload.
type UploadInfo struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Mimetype     string `json:"mimetype"`
	URL          string `json:"url"`
}

// EnsureUploadDir creates the upload directory if it does not exist.
func EnsureUploadDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir %q: %w", dir, err)
	}
	return nil
}

// UploadHandler accepts one multipart file per request, bounded by the
// configured size cap, and stores it under a UUID-prefixed name so uploads
// can never clobber each other.
func UploadHandler(uploadDir string, maxSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		if err := r.ParseMultipartForm(maxSize); err != nil {
			writeJSONError(w, http.StatusBadRequest, "No file uploaded")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		defer func() {
			if err := file.Close(); err != nil {
				log.Printf("Error closing upload stream: %v", err)
			}
		}()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if _, ok := allowedUploadExts[ext]; !ok {
			writeJSONError(w, http.StatusBadRequest, "Invalid file type")
			return
		}

		mimetype := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
		if semi := strings.Index(mimetype, ";"); semi >= 0 {
			mimetype = strings.TrimSpace(mimetype[:semi])
		}
		if _, ok := allowedUploadMIMEs[mimetype]; !ok {
			writeJSONError(w, http.StatusBadRequest, "Invalid file type")
			return
		}

		// Strip any client-supplied path components before reusing the name.
		originalName := filepath.Base(header.Filename)
		storedName := uuid.NewString() + "-" + originalName

		dst, err := os.Create(filepath.Join(uploadDir, storedName))
		if err != nil {
			log.Printf("Error creating upload file: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "Upload failed")
			return
		}

		size, err := io.Copy(dst, file)
		closeErr := dst.Close()
		if err != nil || closeErr != nil {
			log.Printf("Error storing upload %s: copy=%v close=%v", storedName, err, closeErr)
			_ = os.Remove(filepath.Join(uploadDir, storedName))
			writeJSONError(w, http.StatusInternalServerError, "Upload failed")
			return
		}

		writeJSON(w, http.StatusOK, UploadInfo{
			Filename:     storedName,
			OriginalName: originalName,
			Size:         size,
			Mimetype:     mimetype,
			URL:          "/uploads/" + storedName,
		})
	}
}
