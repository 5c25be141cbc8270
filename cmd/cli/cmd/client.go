package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"jobcore/pkg/api"
	"net/http"
	"time"
)

// JobClient handles API calls to the jobcore controller.
type JobClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewJobClient creates a new client with the given base URL and API key.
func NewJobClient(baseURL, apiKey string) *JobClient {
	return &JobClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *JobClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, fmt.Sprintf("%s%s", c.BaseURL, path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.APIKey != "" {
		httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// CreateJob sends POST /jobs to create a new job definition.
func (c *JobClient) CreateJob(req api.SubmitJobRequest) (*api.SubmitJobResponse, error) {
	var result api.SubmitJobResponse
	if err := c.do(http.MethodPost, "/jobs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitJob sends POST /jobs/run to create a job and immediately run it.
func (c *JobClient) SubmitJob(req api.SubmitJobRequest) (*api.SubmitJobResponse, error) {
	var result api.SubmitJobResponse
	if err := c.do(http.MethodPost, "/jobs/run", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartJob sends POST /jobs/{id}/start to create a new execution context for
// an already-persisted job.
func (c *JobClient) StartJob(jobID string) (*api.SubmitJobResponse, error) {
	var result api.SubmitJobResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/jobs/%s/start", jobID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob sends GET /jobs/{id} to retrieve a job definition.
func (c *JobClient) GetJob(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/jobs/%s", jobID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJobs sends GET /jobs to list job definitions.
func (c *JobClient) GetJobs() (*api.JobListResponse, error) {
	var result api.JobListResponse
	if err := c.do(http.MethodGet, "/jobs", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateJob sends PATCH /jobs/{id} with the fields in req that are set.
func (c *JobClient) UpdateJob(jobID string, req api.UpdateJobRequest) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodPatch, fmt.Sprintf("/jobs/%s", jobID), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateExecution sends PATCH /executions/{id} with the fields in req that
// are set. It cannot change an execution's status; use Notify for that.
func (c *JobClient) UpdateExecution(executionID string, req api.UpdateExecutionRequest) error {
	return c.do(http.MethodPatch, fmt.Sprintf("/executions/%s", executionID), req, nil)
}

// GetExecution sends GET /executions/{id} to retrieve execution details.
func (c *JobClient) GetExecution(executionID string) (*api.ExecutionResponse, error) {
	var result api.ExecutionResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/executions/%s", executionID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetExecutions sends GET /jobs/{id}/executions to list executions for a job.
func (c *JobClient) GetExecutions(jobID string) (*api.ExecutionListResponse, error) {
	var result api.ExecutionListResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/jobs/%s/executions", jobID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLatestExecution sends GET /jobs/{id}/executions/latest.
func (c *JobClient) GetLatestExecution(jobID string, onlyActive bool) (*api.LatestExecutionResponse, error) {
	path := fmt.Sprintf("/jobs/%s/executions/latest", jobID)
	if onlyActive {
		path += "?active=true"
	}
	var result api.LatestExecutionResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Notify sends POST /executions/{id}/notify to issue a pause/resume/stop command.
func (c *JobClient) Notify(executionID, command string) (*api.NotifyResponse, error) {
	var result api.NotifyResponse
	req := api.NotifyRequest{Command: command}
	if err := c.do(http.MethodPost, fmt.Sprintf("/executions/%s/notify", executionID), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RestartExecution sends POST /executions/{id}/restart to re-enqueue a
// terminated execution.
func (c *JobClient) RestartExecution(executionID string) (*api.NotifyResponse, error) {
	var result api.NotifyResponse
	if err := c.do(http.MethodPost, fmt.Sprintf("/executions/%s/restart", executionID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
