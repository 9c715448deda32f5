package engine

import (
	"context"

	"github.com/jupiterone/integration-sdk-go/common/logger"
	"github.com/jupiterone/integration-sdk-go/common/models"
)

// UploadSink is the optional streaming upload destination a job state
// enqueues entities/relationships into as they're added (spec.md §4.3). The
// synchronization package's job-scoped uploader implements this.
type UploadSink interface {
	EnqueueEntity(e models.Entity) error
	EnqueueRelationship(r models.Relationship) error
	WaitUntilDrained(ctx context.Context) error
}

// jobState is the per-step façade over the shared object store, trackers
// and data store (spec.md §4.3). A new jobState is created per step,
// flushed once at step end, then discarded (spec.md §3 Lifecycles); the
// trackers and store it wraps outlive it.
type jobState struct {
	step        *models.Step
	store       *GraphObjectStore
	keyTracker  *DuplicateKeyTracker
	typeTracker *TypeTracker
	dataStore   *DataStore
	uploadSink  UploadSink
	log         logger.Log
}

func newJobState(
	step *models.Step,
	store *GraphObjectStore,
	keyTracker *DuplicateKeyTracker,
	typeTracker *TypeTracker,
	dataStore *DataStore,
	uploadSink UploadSink,
	log logger.Log,
) *jobState {
	return &jobState{
		step:        step,
		store:       store,
		keyTracker:  keyTracker,
		typeTracker: typeTracker,
		dataStore:   dataStore,
		uploadSink:  uploadSink,
		log:         log,
	}
}

var _ models.JobState = (*jobState)(nil)

func (j *jobState) stepCtx() *models.StepContext {
	return &models.StepContext{Step: j.step, JobState: j, Log: j.log}
}

// AddEntity applies the step's beforeAddEntity hook, registers the key with
// the duplicate tracker, records the type, persists the entity and enqueues
// it for upload (spec.md §4.3).
func (j *jobState) AddEntity(ctx context.Context, e models.Entity) error {
	hooked, err := j.step.BeforeAddEntityHook()(ctx, j.stepCtx(), e)
	if err != nil {
		return err
	}
	if err := j.keyTracker.Admit(hooked.Key, j.step.ID); err != nil {
		return err
	}
	j.typeTracker.Record(j.step.ID, hooked.Type)
	j.store.StageEntity(j.step.ID, hooked)
	if j.uploadSink != nil {
		if err := j.uploadSink.EnqueueEntity(hooked); err != nil {
			return err
		}
	}
	return nil
}

func (j *jobState) AddEntities(ctx context.Context, es []models.Entity) error {
	for _, e := range es {
		if err := j.AddEntity(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// AddRelationship has the same contract as AddEntity, minus the
// beforeAddEntity hook (spec.md §4.3).
func (j *jobState) AddRelationship(ctx context.Context, r models.Relationship) error {
	if err := j.keyTracker.Admit(r.Key, j.step.ID); err != nil {
		return err
	}
	j.typeTracker.Record(j.step.ID, r.Type)
	j.store.StageRelationship(j.step.ID, r)
	if j.uploadSink != nil {
		if err := j.uploadSink.EnqueueRelationship(r); err != nil {
			return err
		}
	}
	return nil
}

func (j *jobState) AddRelationships(ctx context.Context, rs []models.Relationship) error {
	for _, r := range rs {
		if err := j.AddRelationship(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (j *jobState) FindEntity(ctx context.Context, key string) (*models.Entity, error) {
	e, ok := j.store.FindEntity(key)
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (j *jobState) IterateEntities(ctx context.Context, filter models.EntityTargetFilter, fn func(models.Entity) error) error {
	return j.store.IterateEntities(filter, fn)
}

func (j *jobState) IterateRelationships(ctx context.Context, filter models.RelationshipTargetFilter, fn func(models.Relationship) error) error {
	return j.store.IterateRelationships(filter, fn)
}

func (j *jobState) SetData(scope, key string, value interface{}) {
	j.dataStore.Set(scope, key, value)
}

func (j *jobState) GetData(scope, key string) (interface{}, bool) {
	return j.dataStore.Get(scope, key)
}

// Flush forces the graph object store to materialize this step's pending
// writes (spec.md §4.3).
func (j *jobState) Flush(ctx context.Context) error {
	return j.store.Flush(ctx, j.step.ID)
}

// WaitUntilUploadsComplete blocks until the upload sink drains, if one is
// configured (spec.md §4.3).
func (j *jobState) WaitUntilUploadsComplete(ctx context.Context) error {
	if j.uploadSink == nil {
		return nil
	}
	return j.uploadSink.WaitUntilDrained(ctx)
}
