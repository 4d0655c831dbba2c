package repository

import (
	"context"
	"fmt"

	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
	"github.com/minjen/minjen-counter/backend/go-services/internal/storage"
)

// ObjectStore is the slice of the MinIO wrapper the repository needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// MinioRepo keeps the document as one JSON object in a bucket.
type MinioRepo struct {
	store  ObjectStore
	object string
}

func NewMinioRepo(store ObjectStore, object string) *MinioRepo {
	if object == "" {
		object = "data.json"
	}
	return &MinioRepo{store: store, object: object}
}

func (m *MinioRepo) Load(ctx context.Context) (*minyan.State, error) {
	b, err := m.store.Download(ctx, m.object)
	if err != nil {
		if storage.IsNotFound(err) {
			return minyan.NewState(), nil
		}
		return nil, fmt.Errorf("download %s: %w", m.object, err)
	}
	return Decode(b)
}

func (m *MinioRepo) Save(ctx context.Context, s *minyan.State) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	return m.store.Upload(ctx, m.object, b, "application/json")
}
