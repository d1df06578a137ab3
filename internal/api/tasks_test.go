package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"task-manager/internal/api"
	"task-manager/internal/config"
	"task-manager/pkg/task"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.New()
	cfg.StoreDriver = config.DriverMemory
	cfg.Env = "test"
	cfg.WasmDir = t.TempDir() + "/missing"
	return cfg
}

func newApp(t *testing.T) http.Handler {
	t.Helper()
	return newAppWithStore(t, task.NewMemStore())
}

func newAppWithStore(t *testing.T, store task.Store) http.Handler {
	t.Helper()
	svc, err := task.NewService(store)
	if err != nil {
		t.Fatalf("task.NewService err=%v", err)
	}
	return api.New(svc, testConfig(t))
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body err=%v", err)
		}
	}
	return doRaw(t, h, method, path, buf.String())
}

func doRaw(t *testing.T, h http.Handler, method, path, raw string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env envelope
	if ct := rr.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope err=%v body=%s", err, rr.Body.String())
		}
	}
	return rr, env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data err=%v data=%s", err, env.Data)
	}
}

func createTask(t *testing.T, h http.Handler, title, description string) task.Task {
	t.Helper()
	rr, env := doJSON(t, h, http.MethodPost, "/api/tasks", map[string]any{
		"title":       title,
		"description": description,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out task.Task
	decodeData(t, env, &out)
	return out
}

func TestTaskLifecycle(t *testing.T) {
	app := newApp(t)

	created := createTask(t, app, "A", "B")
	if created.Status != task.StatusPending {
		t.Fatalf("status=%q, want pending", created.Status)
	}

	rr, env := doJSON(t, app, http.MethodGet, "/api/tasks?status=pending", nil)
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("list status=%d body=%s", rr.Code, rr.Body.String())
	}
	var page task.Page
	decodeData(t, env, &page)
	if len(page.Tasks) != 1 || page.Tasks[0].ID != created.ID {
		t.Fatalf("pending list = %+v", page.Tasks)
	}

	rr, _ = doJSON(t, app, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{"status": "completed"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr, env = doJSON(t, app, http.MethodGet, "/api/tasks/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	var got task.Task
	decodeData(t, env, &got)
	if got.Status != task.StatusCompleted || got.Title != "A" || got.Description != "B" {
		t.Fatalf("after update = %+v", got)
	}
	if got.UpdatedAt.Before(created.UpdatedAt) {
		t.Fatalf("updatedAt went backwards")
	}

	rr, env = doJSON(t, app, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	if rr.Code != http.StatusOK || !env.Success || env.Message != "Task deleted successfully" {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if len(env.Data) != 0 {
		t.Fatalf("delete returned data %s", env.Data)
	}

	rr, env = doJSON(t, app, http.MethodGet, "/api/tasks/"+created.ID, nil)
	if rr.Code != http.StatusNotFound || env.Success || env.Message != "Task not found" {
		t.Fatalf("get after delete status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestListPagination(t *testing.T) {
	app := newApp(t)
	for i := 0; i < 15; i++ {
		createTask(t, app, fmt.Sprintf("task %02d", i), "d")
	}

	rr, env := doJSON(t, app, http.MethodGet, "/api/tasks?page=2&limit=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var page task.Page
	decodeData(t, env, &page)

	p := page.Pagination
	if len(page.Tasks) != 5 || !p.HasPrev || p.HasNext || p.TotalPages != 2 || p.TotalTasks != 15 || p.CurrentPage != 2 {
		t.Fatalf("len=%d pagination=%+v", len(page.Tasks), p)
	}
	// oldest five, newest first
	if page.Tasks[0].Title != "task 04" || page.Tasks[4].Title != "task 00" {
		t.Fatalf("page 2 = %s .. %s", page.Tasks[0].Title, page.Tasks[4].Title)
	}
}

func TestListDefaultsAndSearch(t *testing.T) {
	app := newApp(t)
	createTask(t, app, "Buy milk", "groceries")
	createTask(t, app, "Call bank", "about the MILK subscription")
	createTask(t, app, "Walk dog", "park")

	_, env := doJSON(t, app, http.MethodGet, "/api/tasks?search=milk", nil)
	var page task.Page
	decodeData(t, env, &page)
	if page.Pagination.TotalTasks != 2 || page.Pagination.CurrentPage != 1 {
		t.Fatalf("search pagination = %+v", page.Pagination)
	}
}

func TestListEmptyHasEmptyArray(t *testing.T) {
	app := newApp(t)
	rr, env := doJSON(t, app, http.MethodGet, "/api/tasks", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var raw struct {
		Tasks      json.RawMessage `json:"tasks"`
		Pagination task.Pagination `json:"pagination"`
	}
	decodeData(t, env, &raw)
	if string(raw.Tasks) != "[]" {
		t.Fatalf("tasks=%s, want []", raw.Tasks)
	}
	if raw.Pagination.TotalPages != 0 {
		t.Fatalf("totalPages=%d", raw.Pagination.TotalPages)
	}
}

func TestListRejectsBadParams(t *testing.T) {
	app := newApp(t)
	for _, qs := range []string{"page=0", "page=-2", "limit=abc", "limit=0", "limit=1000", "status=archived",
		"page=100000000000000000&limit=100", "page=99999999999999999999"} {
		rr, env := doJSON(t, app, http.MethodGet, "/api/tasks?"+qs, nil)
		if rr.Code != http.StatusBadRequest || env.Success {
			t.Fatalf("%s: status=%d body=%s", qs, rr.Code, rr.Body.String())
		}
		if len(env.Error) == 0 {
			t.Fatalf("%s: missing error details", qs)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	app := newApp(t)

	cases := []map[string]any{
		{"description": "no title"},
		{"title": "no description"},
		{"title": "   ", "description": "blank title"},
		{"title": "x", "description": "y", "status": "done"},
	}
	for _, body := range cases {
		rr, env := doJSON(t, app, http.MethodPost, "/api/tasks", body)
		if rr.Code != http.StatusBadRequest || env.Success {
			t.Fatalf("%v: status=%d body=%s", body, rr.Code, rr.Body.String())
		}
	}

	_, env := doJSON(t, app, http.MethodGet, "/api/tasks", nil)
	var page task.Page
	decodeData(t, env, &page)
	if page.Pagination.TotalTasks != 0 {
		t.Fatalf("persisted %d invalid tasks", page.Pagination.TotalTasks)
	}
}

func TestCreateValidationErrorShape(t *testing.T) {
	app := newApp(t)
	_, env := doJSON(t, app, http.MethodPost, "/api/tasks", map[string]any{"title": "t"})
	if env.Message != "Title and description are required" {
		t.Fatalf("message=%q", env.Message)
	}
	var fields map[string]string
	if err := json.Unmarshal(env.Error, &fields); err != nil {
		t.Fatalf("error is not a field map: %s", env.Error)
	}
	if fields["description"] == "" {
		t.Fatalf("fields=%v", fields)
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	app := newApp(t)
	rr, env := doRaw(t, app, http.MethodPost, "/api/tasks", "{bad json}")
	if rr.Code != http.StatusBadRequest || env.Message != "Invalid JSON" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateBodyTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxBodyBytes = 32
	svc, _ := task.NewService(task.NewMemStore())
	app := api.New(svc, cfg)

	rr, _ := doJSON(t, app, http.MethodPost, "/api/tasks", map[string]any{
		"title":       strings.Repeat("x", 64),
		"description": "d",
	})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUpdatePartial(t *testing.T) {
	app := newApp(t)
	created := createTask(t, app, "Title", "Desc")

	rr, env := doJSON(t, app, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{"title": "New title"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got task.Task
	decodeData(t, env, &got)
	if got.Title != "New title" || got.Description != "Desc" || got.Status != task.StatusPending {
		t.Fatalf("got %+v", got)
	}
}

func TestUpdateErrors(t *testing.T) {
	app := newApp(t)
	created := createTask(t, app, "Title", "Desc")

	rr, _ := doJSON(t, app, http.MethodPut, "/api/tasks/does-not-exist", map[string]any{"title": "x"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing: status=%d", rr.Code)
	}

	rr, env := doJSON(t, app, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{"status": "nope"})
	if rr.Code != http.StatusBadRequest || env.Message != "Validation error" {
		t.Fatalf("bad status: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr, _ = doJSON(t, app, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{"title": ""})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty title: status=%d", rr.Code)
	}
}

func TestDeleteMissing(t *testing.T) {
	app := newApp(t)
	rr, env := doJSON(t, app, http.MethodDelete, "/api/tasks/nope", nil)
	if rr.Code != http.StatusNotFound || env.Message != "Task not found" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestStats(t *testing.T) {
	app := newApp(t)

	_, env := doJSON(t, app, http.MethodGet, "/api/tasks/stats", nil)
	var stats map[string]int
	decodeData(t, env, &stats)
	for _, key := range []string{"total", "pending", "in-progress", "completed"} {
		if n, ok := stats[key]; !ok || n != 0 {
			t.Fatalf("empty stats[%q]=%d,%v", key, n, ok)
		}
	}

	a := createTask(t, app, "a", "d")
	createTask(t, app, "b", "d")
	doJSON(t, app, http.MethodPut, "/api/tasks/"+a.ID, map[string]any{"status": "in-progress"})

	_, env = doJSON(t, app, http.MethodGet, "/api/tasks/stats", nil)
	stats = nil
	decodeData(t, env, &stats)
	if stats["pending"] != 1 || stats["in-progress"] != 1 || stats["completed"] != 0 || stats["total"] != 2 {
		t.Fatalf("stats=%v", stats)
	}
	if stats["total"] != stats["pending"]+stats["in-progress"]+stats["completed"] {
		t.Fatalf("total does not equal sum: %v", stats)
	}
}

// failingStore fails every read so internal errors can be observed.
type failingStore struct {
	*task.MemStore
}

var errBackend = errors.New("connection refused by 10.0.0.7:5432")

func (failingStore) Find(context.Context, task.Filter, int, int) ([]task.Task, error) {
	return nil, errBackend
}

func (failingStore) CountByStatus(context.Context) (map[task.Status]int, error) {
	return nil, errBackend
}

func TestInternalErrorsAreSanitized(t *testing.T) {
	app := newAppWithStore(t, failingStore{MemStore: task.NewMemStore()})

	for _, path := range []string{"/api/tasks", "/api/tasks/stats"} {
		rr, env := doJSON(t, app, http.MethodGet, path, nil)
		if rr.Code != http.StatusInternalServerError || env.Success {
			t.Fatalf("%s: status=%d", path, rr.Code)
		}
		if strings.Contains(rr.Body.String(), "10.0.0.7") {
			t.Fatalf("%s: leaked backend detail: %s", path, rr.Body.String())
		}
	}
}

func TestHealth(t *testing.T) {
	app := newApp(t)
	rr, env := doJSON(t, app, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"timestamp"`) {
		t.Fatalf("missing timestamp: %s", rr.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	app := newApp(t)
	for _, path := range []string{"/api/nothing", "/elsewhere"} {
		rr, env := doJSON(t, app, http.MethodGet, path, nil)
		if rr.Code != http.StatusNotFound || env.Success {
			t.Fatalf("%s: status=%d", path, rr.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	app := newApp(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin=%q", got)
	}
}
