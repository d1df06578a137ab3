// Package client talks to the task API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"task-manager/pkg/task"
)

// Client is a task API client.
type Client struct {
	BaseURL string // e.g. http://localhost:5000/
	HTTP    *http.Client
}

// New constructs a client for the API rooted at baseURL.
func New(baseURL string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-success envelope returned by the API.
type Error struct {
	StatusCode int
	Message    string
	Detail     json.RawMessage // error payload, may be empty
}

func (e *Error) Error() string {
	if len(e.Detail) > 0 {
		return fmt.Sprintf("http %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the API answered 404.
func (e *Error) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Fields decodes a validation error's field map. It returns nil when the
// detail is not a field map.
func (e *Error) Fields() map[string]string {
	var fields map[string]string
	if err := json.Unmarshal(e.Detail, &fields); err != nil {
		return nil
	}
	return fields
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

// ListTasks calls GET /api/tasks. Zero fields of q are omitted.
func (c *Client) ListTasks(ctx context.Context, q task.Query) (*task.Page, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "api/tasks"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page task.Page
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTask calls GET /api/tasks/{id}.
func (c *Client) GetTask(ctx context.Context, id string) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodGet, "api/tasks/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask calls POST /api/tasks.
func (c *Client) CreateTask(ctx context.Context, in task.CreateInput) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodPost, "api/tasks", in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask calls PUT /api/tasks/{id} with only the fields set in u.
func (c *Client) UpdateTask(ctx context.Context, id string, u task.Update) (*task.Task, error) {
	var t task.Task
	if err := c.do(ctx, http.MethodPut, "api/tasks/"+url.PathEscape(id), u, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask calls DELETE /api/tasks/{id}.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "api/tasks/"+url.PathEscape(id), nil, nil)
}

// Stats calls GET /api/tasks/stats.
func (c *Client) Stats(ctx context.Context) (task.Stats, error) {
	var st task.Stats
	if err := c.do(ctx, http.MethodGet, "api/tasks/stats", nil, &st); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("http %d: decode envelope: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return &Error{StatusCode: resp.StatusCode, Message: env.Message, Detail: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
