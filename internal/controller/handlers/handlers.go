// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"jobcore/internal/lifecycle"
	"jobcore/internal/store"
	"jobcore/pkg/api"
)

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	engine *lifecycle.Engine
	jobs   store.JobStore
}

// New creates a new Handlers instance fronting engine. jobs is used only
// by the readiness probe.
func New(engine *lifecycle.Engine, jobs store.JobStore) *Handlers {
	return &Handlers{engine: engine, jobs: jobs}
}

// respondJson writes a standard JSON response.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// httpError writes a consistent error response, mapping known lifecycle
// error types to HTTP status codes.
func (h *Handlers) httpError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var validationErr *lifecycle.ValidationError
	var assetErr *lifecycle.AssetResolutionError
	var invalidCmdErr *lifecycle.InvalidCommandError
	var invalidStatusErr *lifecycle.InvalidStatusError
	var notFoundErr *lifecycle.NotFoundError
	var completedErr *lifecycle.CompletedNotRestartableError
	var schedulingErr *lifecycle.AlreadySchedulingError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &assetErr),
		errors.As(err, &invalidCmdErr), errors.As(err, &invalidStatusErr):
		code = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		code = http.StatusNotFound
	case errors.As(err, &completedErr), errors.As(err, &schedulingErr):
		code = http.StatusConflict
	}

	h.respondJson(w, code, api.ErrorResponse{
		Error: err.Error(),
		Code:  strconv.Itoa(code),
	})
}

// httpErrorMsg writes a plain error response for request-parsing
// failures that never reach the lifecycle engine.
func (h *Handlers) httpErrorMsg(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// pagination reads ?from=&size= query params, defaulting to a first page
// of 50 and capping at store.MaxSearchSize.
func pagination(r *http.Request) (from, size int) {
	size = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && v > 0 {
		size = v
	}
	if size > store.MaxSearchSize {
		size = store.MaxSearchSize
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("from")); err == nil && v >= 0 {
		from = v
	}
	return from, size
}
