package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"marketplace-chat/internal/models"
)

// Store persists message attachments and yields their public metadata.
type Store interface {
	Save(file *multipart.FileHeader) (models.Attachment, error)
}

// DiskStore writes attachments under a local directory served at /uploads.
type DiskStore struct {
	dir string
}

// NewDiskStore ensures the upload directory exists.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the backing directory, for static file serving.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save stores the uploaded file under a random name, keeping the original
// extension, and returns the attachment record to persist.
func (s *DiskStore) Save(file *multipart.FileHeader) (models.Attachment, error) {
	src, err := file.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return models.Attachment{}, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return models.Attachment{}, fmt.Errorf("write upload: %w", err)
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return models.Attachment{
		URL:  "/uploads/" + name,
		Type: contentType,
		Name: file.Filename,
	}, nil
}
