package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"task-manager/pkg/task"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		respond(w, failureFor("Error retrieving tasks", err))
		return
	}
	page, err := s.tasks.List(r.Context(), q)
	if err != nil {
		respond(w, failureFor("Error retrieving tasks", err))
		return
	}
	respond(w, ok("Tasks retrieved successfully", page))
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tasks.Stats(r.Context())
	if err != nil {
		respond(w, failureFor("Error retrieving task statistics", err))
		return
	}
	respond(w, ok("Task statistics retrieved successfully", stats))
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respond(w, failureFor("Error retrieving task", err))
		return
	}
	respond(w, ok("Task retrieved successfully", t))
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var in task.CreateInput
	if f, bad := s.decodeBody(w, r, &in); bad {
		respond(w, f)
		return
	}
	t, err := s.tasks.Create(r.Context(), in)
	if err != nil {
		respond(w, failureFor("Error creating task", err))
		return
	}
	respond(w, success{status: http.StatusCreated, message: "Task created successfully", data: t})
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	var u task.Update
	if f, bad := s.decodeBody(w, r, &u); bad {
		respond(w, f)
		return
	}
	t, err := s.tasks.Update(r.Context(), r.PathValue("id"), u)
	if err != nil {
		respond(w, failureFor("Error updating task", err))
		return
	}
	respond(w, ok("Task updated successfully", t))
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), r.PathValue("id")); err != nil {
		respond(w, failureFor("Error deleting task", err))
		return
	}
	respond(w, ok("Task deleted successfully", nil))
}

// decodeBody reads a JSON object into v. It reports bad=true with the
// failure to send when the body is unreadable.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) (f failure, bad bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return failure{}, false
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return failure{status: http.StatusRequestEntityTooLarge, message: "Request body too large"}, true
	}
	return failure{status: http.StatusBadRequest, message: "Invalid JSON", err: err.Error()}, true
}

// parseListQuery reads search, status, page and limit. Present page/limit
// values must be positive integers; absent ones take the defaults.
func parseListQuery(r *http.Request) (task.Query, error) {
	v := r.URL.Query()
	q := task.Query{
		Search: strings.TrimSpace(v.Get("search")),
		Status: task.Status(v.Get("status")),
		Page:   task.DefaultPage,
		Limit:  task.DefaultLimit,
	}

	fields := map[string]string{}
	var err error
	if q.Page, err = queryInt(r, "page", task.DefaultPage); err != nil {
		fields["page"] = "must be a positive integer"
	}
	if q.Limit, err = queryInt(r, "limit", task.DefaultLimit); err != nil {
		fields["limit"] = "must be a positive integer"
	}
	if len(fields) > 0 {
		return task.Query{}, &task.ValidationError{Message: "Invalid query parameters", Fields: fields}
	}
	return q, nil
}

var errNotPositive = errors.New("not a positive integer")

func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errNotPositive
	}
	return n, nil
}
