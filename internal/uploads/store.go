// Package uploads stores prescription files under a per-patient directory.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/carebook/carebook/internal/extract"
)

const timestampLayout = "20060102_150405"

// previewLimit caps the extracted text preview length in runes.
const previewLimit = 500

var (
	// ErrUnsupportedType is returned for file extensions outside the allow list.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("file not found")
)

// allowedExtensions lists the prescription formats patients may upload.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".txt":  true,
	".docx": true,
	".xlsx": true,
}

// File describes one stored prescription upload.
type File struct {
	// Name is the stored filename, timestamp prefix included.
	Name string `json:"name"`
	// OriginalName is the filename as uploaded.
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploaded_at"`
	// Preview holds extracted text for textual formats, empty for images.
	Preview string `json:"preview,omitempty"`
}

// Store saves prescription uploads under root/<patientID>/. Stored names are
// prefixed with the upload timestamp so repeated uploads of the same filename
// never collide.
type Store struct {
	root      string
	extractor *extract.Extractor
}

// NewStore creates the upload root if needed and returns a Store.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{root: root, extractor: extract.NewExtractor()}, nil
}

func (s *Store) patientDir(patientID string) string {
	return filepath.Join(s.root, filepath.Base(patientID))
}

// Save stores the uploaded content for a patient and returns the stored name.
// The extension must be on the allow list.
func (s *Store) Save(patientID, filename string, r io.Reader) (string, error) {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedType
	}

	dir := s.patientDir(patientID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create patient directory: %w", err)
	}

	stored := time.Now().Format(timestampLayout) + "_" + base
	f, err := os.Create(filepath.Join(dir, stored))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return stored, nil
}

// List returns a patient's uploads, oldest first. Textual formats carry an
// extracted preview.
func (s *Store) List(patientID string) ([]*File, error) {
	entries, err := os.ReadDir(s.patientDir(patientID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	files := make([]*File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, s.describe(patientID, entry.Name(), info.Size()))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *Store) describe(patientID, stored string, size int64) *File {
	file := &File{Name: stored, OriginalName: stored, Size: size}

	// Stored names are "20060102_150405_original.ext".
	if parts := strings.SplitN(stored, "_", 3); len(parts) == 3 {
		if ts, err := time.ParseInLocation(timestampLayout, parts[0]+"_"+parts[1], time.Local); err == nil {
			file.UploadedAt = ts.Format(time.RFC3339)
			file.OriginalName = parts[2]
		}
	}

	ext := strings.ToLower(filepath.Ext(stored))
	if extract.Supported(ext) {
		if text, err := s.extractor.Extract(filepath.Join(s.patientDir(patientID), stored)); err == nil {
			file.Preview = truncateRunes(strings.TrimSpace(text), previewLimit)
		}
	}
	return file
}

// Open returns a reader over a stored file.
func (s *Store) Open(patientID, stored string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.patientDir(patientID), filepath.Base(stored)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
