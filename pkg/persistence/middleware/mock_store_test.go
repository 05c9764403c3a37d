package middleware_test

import (
	"context"

	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
)

// MockStore is a map-based store that keeps the exact records it is given.
type MockStore struct {
	data map[string]*domain.RunRecord
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]*domain.RunRecord)}
}

func (s *MockStore) Save(ctx context.Context, run *domain.RunRecord) error {
	s.data[run.ID] = run
	return nil
}

func (s *MockStore) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	run, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (s *MockStore) Delete(ctx context.Context, runID string) error {
	delete(s.data, runID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.RunStore = (*MockStore)(nil)
