// Package memory provides an in-memory aggregate.TaskStore, useful for
// tests and single-process deployments that don't need durability across
// restarts.
package memory

import (
	"context"
	"sync"

	apperrors "aggregatord.io/aggregator/internal/pkg/errors"

	"aggregatord.io/aggregator/internal/aggregate"
)

// Store is a mutex-guarded map-backed aggregate.TaskStore.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]aggregate.TaskRecord
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		tasks: make(map[string]aggregate.TaskRecord),
	}
}

// Exists reports whether uuid has a stored task record.
func (s *Store) Exists(_ context.Context, uuid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[uuid]
	return ok, nil
}

// Get returns the task record for uuid.
func (s *Store) Get(_ context.Context, uuid string) (aggregate.TaskRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[uuid]
	if !ok {
		return nil, false, nil
	}
	return cloneRecord(task), true, nil
}

// Insert stores a new task record. uuid must not already exist.
func (s *Store) Insert(_ context.Context, task aggregate.TaskRecord) (aggregate.TaskRecord, error) {
	uuid, _ := task["uuid"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[uuid]; ok {
		return nil, apperrors.ErrTaskAlreadyExistsf(uuid)
	}
	stored := cloneRecord(task)
	s.tasks[uuid] = stored
	return cloneRecord(stored), nil
}

// Update applies delta onto the record for uuid. uuid must already exist.
func (s *Store) Update(_ context.Context, uuid string, delta aggregate.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[uuid]
	if !ok {
		return apperrors.ErrTaskNotFoundf(uuid)
	}
	for k, v := range delta {
		task[k] = v
	}
	return nil
}

// ListIncomplete returns every task whose actual_runtime is unset or whose
// state is a member of the incomplete runstate set.
func (s *Store) ListIncomplete(_ context.Context, states aggregate.RunStates) ([]aggregate.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []aggregate.TaskRecord
	for _, task := range s.tasks {
		runtime, hasRuntime := task["actual_runtime"]
		state, _ := task["state"].(string)
		if !hasRuntime || runtime == nil || states.IsIncomplete(state) {
			out = append(out, cloneRecord(task))
		}
	}
	return out, nil
}

func cloneRecord(task aggregate.TaskRecord) aggregate.TaskRecord {
	out := make(aggregate.TaskRecord, len(task))
	for k, v := range task {
		out[k] = v
	}
	return out
}
