package api

import (
	"errors"
	"log"
	"net/http"

	"task-manager/pkg/task"
)

// errInternal replaces store and driver messages in 500 responses.
const errInternal = "internal server error"

// envelope is the wire shape shared by every response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// result is the outcome of a handler: either success or failure.
type result interface {
	envelope() (int, envelope)
}

type success struct {
	status  int
	message string
	data    any
}

func (r success) envelope() (int, envelope) {
	return r.status, envelope{Success: true, Message: r.message, Data: r.data}
}

type failure struct {
	status  int
	message string
	err     any
}

func (r failure) envelope() (int, envelope) {
	return r.status, envelope{Success: false, Message: r.message, Error: r.err}
}

func ok(message string, data any) success {
	return success{status: http.StatusOK, message: message, data: data}
}

func respond(w http.ResponseWriter, r result) {
	status, env := r.envelope()
	writeJSON(w, status, env)
}

// failureFor classifies err. action names the failed operation, e.g.
// "Error retrieving tasks", and is only shown for internal errors.
func failureFor(action string, err error) failure {
	var ve *task.ValidationError
	switch {
	case errors.As(err, &ve):
		f := failure{status: http.StatusBadRequest, message: ve.Message}
		if len(ve.Fields) > 0 {
			f.err = ve.Fields
		}
		return f
	case errors.Is(err, task.ErrNotFound):
		return failure{status: http.StatusNotFound, message: "Task not found"}
	default:
		log.Printf("%s: %v", action, err)
		return failure{status: http.StatusInternalServerError, message: action, err: errInternal}
	}
}
