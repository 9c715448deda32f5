package synchronization

import (
	"context"
	"time"

	"github.com/jupiterone/integration-sdk-go/common/gerror"
	"github.com/jupiterone/integration-sdk-go/common/logger"
	"github.com/jupiterone/integration-sdk-go/common/models"
)

// RetryConfig governs the backoff applied between failed upload attempts
// (spec.md §4.5 "retry policy").
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig matches the retry table in spec.md §4.5: up to 5
// attempts, starting at 200ms and backing off by a factor of 1.05 between
// attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  200 * time.Millisecond,
		BackoffFactor: 1.05,
	}
}

// chunkUploader owns the upload retry loop for a single job, shared by every
// concurrent chunk dispatched against it (spec.md §4.5).
type chunkUploader struct {
	client *Client
	cfg    RetryConfig
	log    logger.Log
}

func newChunkUploader(client *Client, cfg RetryConfig, log logger.Log) *chunkUploader {
	return &chunkUploader{client: client, cfg: cfg, log: log}
}

// uploadEntities retries a single batch of entities, shrinking it in place
// if the server rejects it as too large (spec.md §4.5).
func (u *chunkUploader) uploadEntities(ctx context.Context, job *models.SynchronizationJob, batch []models.Entity) error {
	return u.retry(ctx, job, func() error {
		return u.client.UploadEntities(ctx, job.ID, batch, NewCorrelationID())
	}, func() error {
		_, err := shrinkRawData(batch, UploadSizeMax)
		return err
	})
}

// uploadRelationships retries a single batch of relationships. Relationships
// carry no raw data, so a too-large rejection here cannot be shrunk away
// (spec.md §3 "Relationship"; unlike entities it has no _rawData field).
func (u *chunkUploader) uploadRelationships(ctx context.Context, job *models.SynchronizationJob, batch []models.Relationship) error {
	return u.retry(ctx, job, func() error {
		return u.client.UploadRelationships(ctx, job.ID, batch, NewCorrelationID())
	}, nil)
}

// retry implements the attempt/inspect/backoff loop from spec.md §4.5:
//   - RequestEntityTooLargeException / HTTP 413: shrink (if possible) and
//     retry immediately, without consuming a backoff delay.
//   - JOB_NOT_AWAITING_UPLOADS: stop retrying, fatal.
//   - CredentialsError: retry silently, no warning logged.
//   - anything else: log a warning and retry after the current backoff delay.
//   - attempts exhausted: wrap the last error as a synchronizationApiError.
func (u *chunkUploader) retry(ctx context.Context, job *models.SynchronizationJob, attempt func() error, shrink func() error) error {
	delay := u.cfg.InitialDelay
	var lastErr error

	for i := 1; i <= u.cfg.MaxAttempts; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err

		if isTooLarge(err) {
			if shrink == nil {
				return gerror.NewUploadFailedError("batch rejected as too large and cannot be shrunk").Wrap(err)
			}
			if shrinkErr := shrink(); shrinkErr != nil {
				return shrinkErr
			}
			continue
		}

		if isJobNotAwaitingUploads(err) {
			return gerror.NewUploadAfterJobEndedError(job.ID)
		}

		if i == u.cfg.MaxAttempts {
			break
		}

		if !isCredentialsError(err) {
			u.log.Warnf("upload attempt %d/%d for job %q failed: %v", i, u.cfg.MaxAttempts, job.ID, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * u.cfg.BackoffFactor)
	}

	return gerror.NewSyncAPIError("upload failed after exhausting retries", lastErr)
}

func isTooLarge(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	return apiErr.StatusCode == 413 || apiErr.Code == "RequestEntityTooLargeException"
}

func isJobNotAwaitingUploads(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == "JOB_NOT_AWAITING_UPLOADS"
}

func isCredentialsError(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == "CredentialsError"
}
