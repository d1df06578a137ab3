package task

import (
	"context"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Statuses returns every known status in display order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Next returns the status that follows s, wrapping completed back to pending.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusPending
	}
}

// Task is a single tracked unit of work.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Filter selects tasks. Zero values match everything.
type Filter struct {
	Search string // case-insensitive substring of title or description
	Status Status
}

// Matches reports whether t satisfies the filter.
func (f Filter) Matches(t *Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// Update is a partial update. Nil fields are left untouched.
type Update struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Empty reports whether no field is set.
func (u Update) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil
}

// Apply copies the set fields onto t.
func (u Update) Apply(t *Task) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
}

// Store is the contract for task persistence.
//
// Get, Update and Delete return ErrNotFound when no task has the given id,
// including ids that are not well-formed for the backing store.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, id string, u Update) (*Task, error)
	Delete(ctx context.Context, id string) error

	// Find returns at most limit matching tasks after skipping skip,
	// newest first.
	Find(ctx context.Context, f Filter, skip, limit int) ([]Task, error)
	Count(ctx context.Context, f Filter) (int, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)

	EnsureTable(ctx context.Context) error
}
