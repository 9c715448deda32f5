package models

// SynchronizationJobStatus is the server-reported lifecycle state of a
// synchronization job (spec.md §3).
type SynchronizationJobStatus string

const (
	SynchronizationJobStatusAwaitingUploads SynchronizationJobStatus = "AWAITING_UPLOADS"
	SynchronizationJobStatusFinalizePending SynchronizationJobStatus = "FINALIZE_PENDING"
	SynchronizationJobStatusFinalized       SynchronizationJobStatus = "FINALIZED"
	SynchronizationJobStatusAborted         SynchronizationJobStatus = "ABORTED"
)

// SynchronizationJob is the remote-issued handle returned by initiate and
// threaded through every subsequent upload/finalize/abort call (spec.md §3).
type SynchronizationJob struct {
	ID                    string                   `json:"id"`
	IntegrationJobID      string                   `json:"integrationJobId"`
	IntegrationInstanceID string                   `json:"integrationInstanceId"`
	Status                SynchronizationJobStatus `json:"status"`
}

// PartialDatasets lists the _type values a step acknowledges may be
// incomplete, reported during finalize so the persister does not delete
// graph objects of those types that simply weren't re-uploaded this run
// (spec.md Glossary "Partial dataset").
type PartialDatasets struct {
	Types []string `json:"types"`
}
