package task

import (
	"context"
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Query is a list request: optional search text and status filter, plus
// 1-based pagination.
type Query struct {
	Search string
	Status Status
	Page   int
	Limit  int
}

// Validate fills defaults for zero page/limit and rejects out-of-range values.
func (q *Query) Validate() error {
	fields := map[string]string{}
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Page < 1 {
		fields["page"] = "must be a positive integer"
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		fields["limit"] = fmt.Sprintf("must be between 1 and %d", MaxLimit)
	} else if q.Page > 1 && q.Page-1 > math.MaxInt/q.Limit {
		// Skip must fit in an int.
		fields["page"] = "is too large"
	}
	if q.Status != "" && !q.Status.Valid() {
		fields["status"] = statusReason
	}
	if len(fields) > 0 {
		return invalid("Invalid query parameters", fields)
	}
	return nil
}

// Filter returns the store filter for the query.
func (q Query) Filter() Filter {
	return Filter{Search: q.Search, Status: q.Status}
}

// Skip is the number of matching tasks before the requested page.
func (q Query) Skip() int {
	return (q.Page - 1) * q.Limit
}

// Pagination describes where a Page sits in the full result set.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalTasks  int  `json:"totalTasks"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// Page is one page of list results.
type Page struct {
	Tasks      []Task     `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

// NewPage shapes a fetched slice of tasks and the total match count into a
// Page for q.
func NewPage(q Query, tasks []Task, total int) *Page {
	if tasks == nil {
		tasks = []Task{}
	}
	totalPages := 0
	if q.Limit > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}
	return &Page{
		Tasks: tasks,
		Pagination: Pagination{
			CurrentPage: q.Page,
			TotalPages:  totalPages,
			TotalTasks:  total,
			HasNext:     q.Skip()+len(tasks) < total,
			HasPrev:     q.Page > 1,
		},
	}
}

// Stats maps each status to its task count. It always has a key for every
// known status and a "total" key.
type Stats map[string]int

// StatsTotalKey is the Stats key holding the sum of all status counts.
const StatsTotalKey = "total"

// NewStats zero-fills the known statuses and merges grouped counts into them.
// Statuses outside the known set are kept as-is, except one named like the
// total key, which only counts toward the total.
func NewStats(grouped map[Status]int) Stats {
	st := Stats{StatsTotalKey: 0}
	for _, s := range Statuses() {
		st[string(s)] = 0
	}
	for s, n := range grouped {
		if string(s) != StatsTotalKey {
			st[string(s)] += n
		}
		st[StatsTotalKey] += n
	}
	return st
}

// Total returns the sum of all status counts.
func (s Stats) Total() int { return s[StatsTotalKey] }

// Count returns the count for one status.
func (s Stats) Count(status Status) int { return s[string(status)] }

// CreateInput carries the fields of a new task. An empty Status means pending.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status,omitempty"`
}

const statusReason = "must be one of pending, in-progress, completed"

// Service implements listing, mutation and statistics on top of a Store.
// It holds no state of its own between calls.
type Service struct {
	store Store
}

// NewService creates a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	return &Service{store: store}, nil
}

// List returns the requested page of tasks matching q, newest first.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	f := q.Filter()
	tasks, err := s.store.Find(ctx, f, q.Skip(), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	return NewPage(q, tasks, total), nil
}

// Get returns a single task.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.store.Get(ctx, id)
}

// Create validates in and persists a new task.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Task, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		fields := map[string]string{}
		if title == "" {
			fields["title"] = "is required"
		}
		if description == "" {
			fields["description"] = "is required"
		}
		return nil, invalid("Title and description are required", fields)
	}

	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return nil, invalid("Validation error", map[string]string{"status": statusReason})
	}

	return s.store.Create(ctx, &Task{
		Title:       title,
		Description: description,
		Status:      status,
	})
}

// Update applies the set fields of u to the task with the given id.
func (s *Service) Update(ctx context.Context, id string, u Update) (*Task, error) {
	fields := map[string]string{}
	if u.Title != nil {
		v := strings.TrimSpace(*u.Title)
		if v == "" {
			fields["title"] = "cannot be empty"
		}
		u.Title = &v
	}
	if u.Description != nil {
		v := strings.TrimSpace(*u.Description)
		if v == "" {
			fields["description"] = "cannot be empty"
		}
		u.Description = &v
	}
	if u.Status != nil && !u.Status.Valid() {
		fields["status"] = statusReason
	}
	if len(fields) > 0 {
		return nil, invalid("Validation error", fields)
	}
	return s.store.Update(ctx, id, u)
}

// Delete removes the task with the given id after checking it exists.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Stats returns task counts grouped by status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	grouped, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return NewStats(grouped), nil
}
