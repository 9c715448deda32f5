package synchronization

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jupiterone/integration-sdk-go/common/logger"
	"github.com/jupiterone/integration-sdk-go/common/models"
)

// Upload sizing and concurrency constants (spec.md §4.5).
const (
	UploadBatchSize   = 250
	UploadSizeMax     = 6275072
	UploadConcurrency = 6
)

// Pipeline drives a synchronization job's full lifecycle: initiate, upload,
// finalize or abort (spec.md §4.5 "job lifecycle").
type Pipeline struct {
	client   *Client
	uploader *chunkUploader
	events   *EventQueue
	log      logger.Log
}

func NewPipeline(client *Client, retryCfg RetryConfig, events *EventQueue, log logger.Log) *Pipeline {
	if log == nil {
		log = logger.NewNoOpLog()
	}
	return &Pipeline{
		client:   client,
		uploader: newChunkUploader(client, retryCfg, log),
		events:   events,
		log:      log,
	}
}

// publishEvent records a lifecycle event on the pipeline's event queue (if
// any) and logs it normally, regardless of whether the configured Log
// implementation has its own event sink wired in (spec.md §4.5 "event
// publishing"). Pipeline owns the event queue directly rather than relying on
// Log.Event's optional sink so tests can observe events with a plain
// logger.NewNoOpLog().
func (p *Pipeline) publishEvent(name string, fields logger.Fields) {
	p.log.WithFields(fields).Infof("event: %s", name)
	if p.events != nil {
		p.events.PublishEvent("SyncPipeline", name, fields)
	}
}

// Initiate opens a new synchronization job (spec.md §4.5 step 1).
func (p *Pipeline) Initiate(ctx context.Context, integrationInstanceID string) (*models.SynchronizationJob, error) {
	job, err := p.client.Initiate(ctx, integrationInstanceID)
	if err != nil {
		return nil, fmt.Errorf("error initiating synchronization job: %w", err)
	}
	p.publishEvent("job.initiated", logger.Fields{"jobId": job.ID})
	return job, nil
}

// UploadCollectedData walks every persisted entities/relationships file
// under storageDir (the same layout the graph object store writes on flush)
// and uploads it in UploadBatchSize chunks, up to UploadConcurrency chunks
// in flight at once (spec.md §4.5 step 2).
func (p *Pipeline) UploadCollectedData(ctx context.Context, job *models.SynchronizationJob, storageDir string) error {
	entityFiles, err := listJSONFiles(filepath.Join(storageDir, "entities"))
	if err != nil {
		return fmt.Errorf("error listing entity files: %w", err)
	}
	relFiles, err := listJSONFiles(filepath.Join(storageDir, "relationships"))
	if err != nil {
		return fmt.Errorf("error listing relationship files: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(UploadConcurrency)

	for _, path := range entityFiles {
		path := path
		var entities []models.Entity
		if err := readJSONFile(path, &entities); err != nil {
			return err
		}
		for _, batch := range chunkEntities(entities, UploadBatchSize) {
			batch := batch
			g.Go(func() error {
				return p.uploader.uploadEntities(gctx, job, batch)
			})
		}
	}
	for _, path := range relFiles {
		var relationships []models.Relationship
		if err := readJSONFile(path, &relationships); err != nil {
			return err
		}
		for _, batch := range chunkRelationships(relationships, UploadBatchSize) {
			batch := batch
			g.Go(func() error {
				return p.uploader.uploadRelationships(gctx, job, batch)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error uploading collected data: %w", err)
	}
	p.publishEvent("job.uploaded", logger.Fields{"jobId": job.ID})
	return nil
}

// Finalize closes out the job, reporting the step types acknowledged as
// partial (spec.md §4.5 step 3).
func (p *Pipeline) Finalize(ctx context.Context, job *models.SynchronizationJob, partialDatasets models.PartialDatasets) (*models.SynchronizationJob, error) {
	finalized, err := p.client.Finalize(ctx, job.ID, partialDatasets)
	if err != nil {
		return nil, fmt.Errorf("error finalizing synchronization job %q: %w", job.ID, err)
	}
	p.publishEvent("job.finalized", logger.Fields{"jobId": job.ID, "status": string(finalized.Status)})
	return finalized, nil
}

// Abort cancels the job after an unrecoverable failure (spec.md §4.5
// "abort on failure").
func (p *Pipeline) Abort(ctx context.Context, job *models.SynchronizationJob, reason string) error {
	if _, err := p.client.Abort(ctx, job.ID, reason); err != nil {
		return fmt.Errorf("error aborting synchronization job %q: %w", job.ID, err)
	}
	p.publishEvent("job.aborted", logger.Fields{"jobId": job.ID, "reason": reason})
	return nil
}

// SynchronizeCollectedData runs the full lifecycle end to end: initiate,
// upload, finalize. On any failure it aborts the job before returning; if the
// abort call itself fails, that failure is logged and re-raised in place of
// the original error (spec.md §4.5 step 3, §7 "Propagation"). The event
// queue is always drained before returning, regardless of outcome (spec.md
// §4.5 "event publishing").
func (p *Pipeline) SynchronizeCollectedData(ctx context.Context, integrationInstanceID, storageDir string, partialDatasets models.PartialDatasets) (err error) {
	var job *models.SynchronizationJob
	defer func() {
		if p.events != nil {
			p.events.Wait()
		}
	}()

	job, err = p.Initiate(ctx, integrationInstanceID)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if abortErr := p.Abort(context.Background(), job, err.Error()); abortErr != nil {
				p.log.Warnf("error aborting job %q after failure: %v", job.ID, abortErr)
				err = fmt.Errorf("error aborting job %q after failure: %w", job.ID, abortErr)
			}
		}
	}()

	if err = p.UploadCollectedData(ctx, job, storageDir); err != nil {
		return err
	}

	if _, err = p.Finalize(ctx, job, partialDatasets); err != nil {
		return err
	}
	return nil
}

func chunkEntities(items []models.Entity, size int) [][]models.Entity {
	var chunks [][]models.Entity
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

func chunkRelationships(items []models.Relationship, size int) [][]models.Relationship {
	var chunks [][]models.Relationship
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

func listJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

func readJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %q: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error parsing %q: %w", path, err)
	}
	return nil
}
