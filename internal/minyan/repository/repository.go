package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
)

// Repository persists the whole minyan document. Load returns an empty
// state when nothing has been stored yet; Save overwrites everything.
type Repository interface {
	Load(ctx context.Context) (*minyan.State, error)
	Save(ctx context.Context, s *minyan.State) error
}

// Encode renders the document the way it is stored on disk: pretty-printed
// JSON with two-space indentation.
func Encode(s *minyan.State) ([]byte, error) {
	if s == nil {
		s = minyan.NewState()
	}
	b, err := json.MarshalIndent(s.Normalize(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

// Decode parses a stored document. Empty input decodes to an empty state.
func Decode(b []byte) (*minyan.State, error) {
	if len(b) == 0 {
		return minyan.NewState(), nil
	}
	var s minyan.State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return s.Normalize(), nil
}
