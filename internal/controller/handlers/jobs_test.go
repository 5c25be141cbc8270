package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobcore/internal/store"
	"jobcore/pkg/api"
)

func TestCreateJob(t *testing.T) {
	validBody, _ := json.Marshal(api.SubmitJobRequest{
		Name:     "nightly-import",
		Pipeline: json.RawMessage(`{"steps":[]}`),
		Workers:  2,
	})

	tests := []struct {
		name           string
		body           []byte
		expectedStatus int
		expectedInBody string
	}{
		{
			name:           "success",
			body:           validBody,
			expectedStatus: http.StatusOK,
			expectedInBody: "job_id",
		},
		{
			name:           "invalid json",
			body:           []byte(`{invalid`),
			expectedStatus: http.StatusBadRequest,
			expectedInBody: "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandlers(t)

			req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(tt.body))
			rr := httptest.NewRecorder()

			h.CreateJob(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("got status %d, want %d, body %s", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tt.expectedInBody) {
				t.Errorf("body %q does not contain %q", rr.Body.String(), tt.expectedInBody)
			}
		})
	}
}

func TestSubmitAndRunJobCreatesExecution(t *testing.T) {
	h, jobs := newTestHandlers(t)

	body, _ := json.Marshal(api.SubmitJobRequest{
		Name:     "nightly-import",
		Pipeline: json.RawMessage(`{"steps":[]}`),
		Workers:  1,
	})

	req := httptest.NewRequest(http.MethodPost, "/jobs/run", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.SubmitAndRunJob(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rr.Code, rr.Body.String())
	}

	var resp api.SubmitJobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected a job id")
	}
	if len(jobs.executions) != 1 {
		t.Fatalf("expected 1 execution created, got %d", len(jobs.executions))
	}
}

func TestGetJobNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+newUUIDString(), nil)
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUpdateJobPatchesOnlySetFields(t *testing.T) {
	h, jobs := newTestHandlers(t)

	job, err := jobs.CreateJob(context.Background(), &store.Job{
		Name:      "nightly-import",
		Pipeline:  json.RawMessage(`{"steps":[]}`),
		Workers:   2,
		Lifecycle: store.LifecycleOnce,
	})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}

	newWorkers := 8
	body, _ := json.Marshal(api.UpdateJobRequest{Workers: &newWorkers})

	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /jobs/{id}", h.UpdateJob)

	req := httptest.NewRequest(http.MethodPatch, "/jobs/"+job.ID.String(), bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rr.Code, rr.Body.String())
	}

	var resp api.JobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Workers != 8 {
		t.Errorf("workers = %d, want 8", resp.Workers)
	}
	if resp.Name != "nightly-import" {
		t.Errorf("name changed unexpectedly to %q", resp.Name)
	}
}

func TestUpdateJobNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)

	body, _ := json.Marshal(api.UpdateJobRequest{})
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /jobs/{id}", h.UpdateJob)

	req := httptest.NewRequest(http.MethodPatch, "/jobs/"+newUUIDString(), bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUpdateJobInvalidBody(t *testing.T) {
	h, jobs := newTestHandlers(t)

	job, err := jobs.CreateJob(context.Background(), &store.Job{Name: "x", Workers: 1})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /jobs/{id}", h.UpdateJob)

	req := httptest.NewRequest(http.MethodPatch, "/jobs/"+job.ID.String(), bytes.NewReader([]byte(`{invalid`)))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
