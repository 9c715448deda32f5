package synchronization

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterone/integration-sdk-go/common/models"
)

func TestClient_Initiate_ReturnsJobAndSendsIntegrationInstanceID(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(jobResponse{
			Job: models.SynchronizationJob{ID: "job-1", Status: models.SynchronizationJobStatusAwaitingUploads},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	job, err := client.Initiate(context.Background(), "instance-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "instance-1", gotBody["integrationInstanceId"])
}

func TestClient_UploadEntities_SendsCorrelationIDHeader(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(CorrelationIDHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	err := client.UploadEntities(context.Background(), "job-1", []models.Entity{{Key: "e1", Type: "foo"}}, "correlation-123")
	require.NoError(t, err)
	assert.Equal(t, "correlation-123", gotHeader)
}

func TestClient_Finalize_ReturnsFinalizedJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req finalizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"foo_thing"}, req.PartialDatasets.Types)
		_ = json.NewEncoder(w).Encode(jobResponse{
			Job: models.SynchronizationJob{ID: "job-1", Status: models.SynchronizationJobStatusFinalized},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	job, err := client.Finalize(context.Background(), "job-1", models.PartialDatasets{Types: []string{"foo_thing"}})
	require.NoError(t, err)
	assert.Equal(t, models.SynchronizationJobStatusFinalized, job.Status)
}

func TestClient_Abort_ReturnsAbortedJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jobResponse{
			Job: models.SynchronizationJob{ID: "job-1", Status: models.SynchronizationJobStatusAborted},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	job, err := client.Abort(context.Background(), "job-1", "handler panicked")
	require.NoError(t, err)
	assert.Equal(t, models.SynchronizationJobStatusAborted, job.Status)
}

func TestClient_ErrorResponse_ParsesCodeAndMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "JOB_NOT_AWAITING_UPLOADS", "message": "job ended"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.Finalize(context.Background(), "job-1", models.PartialDatasets{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "JOB_NOT_AWAITING_UPLOADS", apiErr.Code)
	assert.Equal(t, "job ended", apiErr.Message)
}

func TestClient_ErrorResponse_MalformedBodyFallsBackToRawText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.Abort(context.Background(), "job-1", "reason")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "internal server error", apiErr.Message)
	assert.Equal(t, "", apiErr.Code)
}

func TestNewCorrelationID_ProducesDistinctValues(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
