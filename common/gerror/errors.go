package gerror

const (
	// ErrCodeConfiguration covers missing/invalid configuration or an invalid
	// dependency graph (spec.md §7.1). Always fatal, raised before execution.
	ErrCodeConfiguration Code = "ConfigurationError"

	// ErrCodeStepHandler is a plain step handler failure (spec.md §7.2).
	ErrCodeStepHandler Code = "StepHandlerError"

	// ErrCodeDuplicateKey is raised by the job state when a _key is inserted
	// twice (spec.md §7.4, §4.3).
	ErrCodeDuplicateKey Code = "DuplicateKeyError"

	// ErrCodeSyncAPI wraps an underlying HTTP/transport error from the
	// synchronization pipeline with a stable code (spec.md §7.5).
	ErrCodeSyncAPI Code = "synchronizationApiError"

	// ErrCodeUploadAfterJobEnded is raised when the server reports the job no
	// longer accepts uploads. Always fatal (spec.md §7.5, §4.5).
	ErrCodeUploadAfterJobEnded Code = "INTEGRATION_UPLOAD_AFTER_JOB_ENDED"

	// ErrCodeUploadFailed is raised when shrinkRawData can no longer reduce a
	// batch's size (spec.md §7.6, §4.5).
	ErrCodeUploadFailed Code = "INTEGRATION_UPLOAD_FAILED"
)

func NewConfigurationError(message string) Error {
	return New(ErrCodeConfiguration, message).Fatal()
}

func NewDuplicateKeyError(key, insertingStepID string) Error {
	return Newf(ErrCodeDuplicateKey, "duplicate key %q inserted by step %q", key, insertingStepID)
}

func NewUploadAfterJobEndedError(jobID string) Error {
	return Newf(ErrCodeUploadAfterJobEnded, "job %q is no longer awaiting uploads", jobID).Fatal()
}

func NewUploadFailedError(message string) Error {
	return New(ErrCodeUploadFailed, message)
}

func NewSyncAPIError(message string, inner error) Error {
	return New(ErrCodeSyncAPI, message).Wrap(inner)
}
