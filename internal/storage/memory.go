package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"bitevo/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	generations map[string][]model.GenerationStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.generations = make(map[string][]model.GenerationStats)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.RunRecord{}, false, errNotInitialized
	}
	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns runs newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sortRunsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) SaveGenerationStats(_ context.Context, runID string, stats []model.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.generations[runID] = append([]model.GenerationStats(nil), stats...)
	return nil
}

func (s *MemoryStore) GetGenerationStats(_ context.Context, runID string) ([]model.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, errNotInitialized
	}
	stats, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationStats(nil), stats...), true, nil
}

func sortRunsNewestFirst(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC.Equal(runs[j].CreatedAtUTC) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC.After(runs[j].CreatedAtUTC)
	})
}
