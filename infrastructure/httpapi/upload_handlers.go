package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// handleUploadImage stores an attachment and returns the URL a message can
// carry. The content is sniffed, not trusted from the filename: anything
// that is not an image is refused.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.writeError(w, http.StatusBadRequest, "No image provided")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "No selected file")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.log.Error("Upload read failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	kind := mimetype.Detect(data)
	if !strings.HasPrefix(kind.String(), "image/") {
		s.writeError(w, http.StatusBadRequest, "Only image uploads are accepted")
		return
	}

	name := uuid.NewString() + kind.Extension()
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.log.Error("Upload dir create failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}
	if err := os.WriteFile(filepath.Join(s.uploadDir, name), data, 0o644); err != nil {
		s.log.Error("Upload write failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"image_url": "/api/images/" + name})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("name"))
	http.ServeFile(w, r, filepath.Join(s.uploadDir, name))
}
