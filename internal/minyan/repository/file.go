package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
	"github.com/natefinch/atomic"
)

// FileRepo keeps the document in a single JSON file. Writes go through a
// temp file and rename so a crash never leaves a half-written document.
type FileRepo struct {
	path string
}

func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path}
}

func (f *FileRepo) Path() string { return f.path }

func (f *FileRepo) Load(ctx context.Context) (*minyan.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return minyan.NewState(), nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return Decode(b)
}

func (f *FileRepo) Save(ctx context.Context, s *minyan.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := Encode(s)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}
