// Package snapshot writes confirmed stop-sign frames to disk and, optionally,
// to object storage.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// FilePrefix and FileExt make up snapshot file names: stop_sign_20060102_150405.jpg
const (
	FilePrefix   = "stop_sign_"
	FileExt      = ".jpg"
	TimeLayout   = "20060102_150405"
	maxCollision = 1000
)

var (
	// ErrEmptyFrame is returned when asked to save a nil or empty frame.
	ErrEmptyFrame = errors.New("snapshot frame is empty")
	// ErrWriteFailed is returned when OpenCV cannot write the image file.
	ErrWriteFailed = errors.New("failed to write snapshot")
)

// Snapshot describes a saved frame.
type Snapshot struct {
	Path  string    `json:"path"`
	Name  string    `json:"name"`
	Taken time.Time `json:"taken"`
}

// FileName returns the snapshot file name for a capture time.
func FileName(at time.Time) string {
	return FilePrefix + at.Format(TimeLayout) + FileExt
}

// Saver writes snapshot images into a directory.
type Saver struct {
	dir string
}

// NewSaver creates a Saver rooted at dir. The directory is created on first save.
func NewSaver(dir string) *Saver {
	if dir == "" {
		dir = "."
	}
	return &Saver{dir: dir}
}

// Dir returns the snapshot directory.
func (s *Saver) Dir() string {
	return s.dir
}

// Save writes frame as a JPEG named after at. If a file with that name already
// exists a numeric suffix is added so earlier snapshots are never overwritten.
func (s *Saver) Save(frame *gocv.Mat, at time.Time) (Snapshot, error) {
	if frame == nil || frame.Empty() {
		return Snapshot{}, ErrEmptyFrame
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Snapshot{}, fmt.Errorf("create snapshot dir: %w", err)
	}

	path, err := s.uniquePath(FileName(at))
	if err != nil {
		return Snapshot{}, err
	}

	if ok := gocv.IMWrite(path, *frame); !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrWriteFailed, path)
	}

	return Snapshot{
		Path:  path,
		Name:  filepath.Base(path),
		Taken: at,
	}, nil
}

// uniquePath returns a path in the snapshot dir that does not exist yet.
func (s *Saver) uniquePath(name string) (string, error) {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	base := strings.TrimSuffix(name, FileExt)
	for i := 1; i < maxCollision; i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", base, i, FileExt))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}

	return "", fmt.Errorf("no free snapshot name for %s", name)
}

// Uploader copies a saved snapshot to remote storage and returns its location.
type Uploader interface {
	Upload(ctx context.Context, snap Snapshot) (string, error)
}
