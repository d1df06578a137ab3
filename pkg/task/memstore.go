package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store. Records are lost on restart.
type MemStore struct {
	mu    sync.RWMutex
	seq   int64
	tasks map[string]memRecord
	now   func() time.Time
}

type memRecord struct {
	task Task
	seq  int64 // insertion order, breaks createdAt ties
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		tasks: make(map[string]memRecord),
		now:   time.Now,
	}
}

// EnsureTable is a no-op.
func (s *MemStore) EnsureTable(ctx context.Context) error { return nil }

// Create stores a copy of t with a fresh id and timestamps.
func (s *MemStore) Create(ctx context.Context, t *Task) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	cp.ID = uuid.Must(uuid.NewV7()).String()
	now := s.now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	s.seq++
	s.tasks[cp.ID] = memRecord{task: cp, seq: s.seq}

	out := cp
	return &out, nil
}

// Get returns a copy of the task with the given id.
func (s *MemStore) Get(ctx context.Context, id string) (*Task, error) {
	s.mu.RLock()
	rec, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	t := rec.task
	return &t, nil
}

// Update applies u and refreshes UpdatedAt.
func (s *MemStore) Update(ctx context.Context, id string, u Update) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Apply(&rec.task)
	rec.task.UpdatedAt = s.now()
	s.tasks[id] = rec

	t := rec.task
	return &t, nil
}

// Delete removes the task permanently.
func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// Find returns matching tasks newest first.
func (s *MemStore) Find(ctx context.Context, f Filter, skip, limit int) ([]Task, error) {
	matched := s.matching(f)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
			return a.task.CreatedAt.After(b.task.CreatedAt)
		}
		return a.seq > b.seq
	})

	tasks := []Task{}
	if skip < 0 {
		skip = 0
	}
	for i := skip; i < len(matched) && len(tasks) < limit; i++ {
		tasks = append(tasks, matched[i].task)
	}
	return tasks, nil
}

// Count returns the number of matching tasks.
func (s *MemStore) Count(ctx context.Context, f Filter) (int, error) {
	return len(s.matching(f)), nil
}

// CountByStatus groups tasks by status. Only statuses present are returned.
func (s *MemStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Status]int)
	for _, rec := range s.tasks {
		counts[rec.task.Status]++
	}
	return counts, nil
}

func (s *MemStore) matching(f Filter) []memRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []memRecord
	for _, rec := range s.tasks {
		if f.Matches(&rec.task) {
			out = append(out, rec)
		}
	}
	return out
}
