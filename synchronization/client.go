// Package synchronization implements the synchronization pipeline
// (spec.md §4.5): job lifecycle calls against the remote persister,
// chunked parallel uploads with retry, and adaptive payload shrinking.
package synchronization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jupiterone/integration-sdk-go/common/models"
)

// CorrelationIDHeader is sent on every upload attempt group, fresh per
// retry group (spec.md §6 "Request headers").
const CorrelationIDHeader = "JupiterOne-Correlation-Id"

// APIError represents an error response from the persister, with the
// server-reported error code (if any) extracted from the response body
// (spec.md §6 "Error responses").
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("persister returned %d: %s (code=%s)", e.StatusCode, e.Message, e.Code)
}

// Client is a thin HTTP client for the persister's synchronization API
// (spec.md §6 "HTTP endpoints"). It performs no retries itself; the
// synchronization pipeline owns retry policy since it must inspect and
// sometimes mutate the payload between attempts (spec.md §4.5).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type initiateRequest struct {
	Source                string `json:"source"`
	IntegrationInstanceID string `json:"integrationInstanceId"`
}

type jobResponse struct {
	Job models.SynchronizationJob `json:"job"`
}

// Initiate opens a new synchronization job (spec.md §6
// "POST /persister/synchronization/jobs").
func (c *Client) Initiate(ctx context.Context, integrationInstanceID string) (*models.SynchronizationJob, error) {
	var resp jobResponse
	err := c.post(ctx, "/persister/synchronization/jobs", initiateRequest{
		Source:               "integration-managed",
		IntegrationInstanceID: integrationInstanceID,
	}, &resp, "")
	if err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

type entitiesRequest struct {
	Entities []models.Entity `json:"entities"`
}

type relationshipsRequest struct {
	Relationships []models.Relationship `json:"relationships"`
}

// UploadEntities POSTs a single batch of entities
// (spec.md §6 "POST .../{id}/entities").
func (c *Client) UploadEntities(ctx context.Context, jobID string, entities []models.Entity, correlationID string) error {
	path := fmt.Sprintf("/persister/synchronization/jobs/%s/entities", jobID)
	return c.post(ctx, path, entitiesRequest{Entities: entities}, nil, correlationID)
}

// UploadRelationships POSTs a single batch of relationships
// (spec.md §6 "POST .../{id}/relationships").
func (c *Client) UploadRelationships(ctx context.Context, jobID string, relationships []models.Relationship, correlationID string) error {
	path := fmt.Sprintf("/persister/synchronization/jobs/%s/relationships", jobID)
	return c.post(ctx, path, relationshipsRequest{Relationships: relationships}, nil, correlationID)
}

type finalizeRequest struct {
	PartialDatasets models.PartialDatasets `json:"partialDatasets"`
}

// Finalize closes out a job, applying its uploads atomically
// (spec.md §6 "POST .../{id}/finalize").
func (c *Client) Finalize(ctx context.Context, jobID string, partialDatasets models.PartialDatasets) (*models.SynchronizationJob, error) {
	path := fmt.Sprintf("/persister/synchronization/jobs/%s/finalize", jobID)
	var resp jobResponse
	if err := c.post(ctx, path, finalizeRequest{PartialDatasets: partialDatasets}, &resp, ""); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

type abortRequest struct {
	Reason string `json:"reason"`
}

// Abort cancels a job (spec.md §6 "POST .../{id}/abort").
func (c *Client) Abort(ctx context.Context, jobID, reason string) (*models.SynchronizationJob, error) {
	path := fmt.Sprintf("/persister/synchronization/jobs/%s/abort", jobID)
	var resp jobResponse
	if err := c.post(ctx, path, abortRequest{Reason: reason}, &resp, ""); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// NewCorrelationID generates a fresh correlation id for one retry group
// (spec.md §6).
func NewCorrelationID() string {
	return uuid.NewString()
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}, correlationID string) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationID != "" {
		req.Header.Set(CorrelationIDHeader, correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("error parsing response body: %w", err)
		}
	}
	return nil
}

type errorDocument struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAPIError(statusCode int, body []byte) *APIError {
	var doc errorDocument
	_ = json.Unmarshal(body, &doc) // malformed/absent body just yields empty code/message
	message := doc.Error.Message
	if message == "" {
		message = string(body)
	}
	return &APIError{StatusCode: statusCode, Code: doc.Error.Code, Message: message}
}
