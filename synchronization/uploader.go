package synchronization

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jupiterone/integration-sdk-go/common/models"
)

// JobUploader is the per-step streaming upload sink a job state enqueues
// graph objects into as steps add them, rather than waiting for the whole
// run to finish (spec.md §4.3 "UploadSink", §4.5). It satisfies the engine
// package's UploadSink interface structurally.
type JobUploader struct {
	pipeline *Pipeline
	job      *models.SynchronizationJob

	mu            sync.Mutex
	entities      []models.Entity
	relationships []models.Relationship

	group    *errgroup.Group
	groupCtx context.Context
}

func NewJobUploader(ctx context.Context, pipeline *Pipeline, job *models.SynchronizationJob) *JobUploader {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(UploadConcurrency)
	return &JobUploader{
		pipeline: pipeline,
		job:      job,
		group:    g,
		groupCtx: gctx,
	}
}

// EnqueueEntity buffers e, dispatching a batch upload whenever the buffer
// reaches UploadBatchSize (spec.md §4.5).
func (u *JobUploader) EnqueueEntity(e models.Entity) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entities = append(u.entities, e)
	if len(u.entities) >= UploadBatchSize {
		u.flushEntitiesLocked()
	}
	return nil
}

// EnqueueRelationship buffers r, dispatching a batch upload whenever the
// buffer reaches UploadBatchSize.
func (u *JobUploader) EnqueueRelationship(r models.Relationship) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.relationships = append(u.relationships, r)
	if len(u.relationships) >= UploadBatchSize {
		u.flushRelationshipsLocked()
	}
	return nil
}

func (u *JobUploader) flushEntitiesLocked() {
	if len(u.entities) == 0 {
		return
	}
	batch := u.entities
	u.entities = nil
	u.group.Go(func() error {
		return u.pipeline.uploader.uploadEntities(u.groupCtx, u.job, batch)
	})
}

func (u *JobUploader) flushRelationshipsLocked() {
	if len(u.relationships) == 0 {
		return
	}
	batch := u.relationships
	u.relationships = nil
	u.group.Go(func() error {
		return u.pipeline.uploader.uploadRelationships(u.groupCtx, u.job, batch)
	})
}

// WaitUntilDrained flushes any remaining partial batch and waits for every
// in-flight chunk to complete (spec.md §4.3 "waitUntilUploadsComplete").
func (u *JobUploader) WaitUntilDrained(ctx context.Context) error {
	u.mu.Lock()
	u.flushEntitiesLocked()
	u.flushRelationshipsLocked()
	u.mu.Unlock()
	return u.group.Wait()
}
