package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/jupiterone/integration-sdk-go/cache"
	"github.com/jupiterone/integration-sdk-go/common/gerror"
	"github.com/jupiterone/integration-sdk-go/common/logger"
	"github.com/jupiterone/integration-sdk-go/common/models"
)

// DefaultConcurrency is the scheduler's default bounded-concurrency cap: one
// in-flight step at a time, matching the sequential-by-design original core
// (spec.md §5).
const DefaultConcurrency = 1

// SchedulerConfig configures a Scheduler (spec.md §4.2).
type SchedulerConfig struct {
	// Concurrency bounds how many steps may be in flight at once. Defaults to
	// DefaultConcurrency.
	Concurrency int
	// StorageDir is the root directory the graph object store materializes
	// flushed entities/relationships into. Empty means in-memory only.
	StorageDir string
	// LogFactory builds loggers for the scheduler and its steps. Defaults to a
	// no-op logger.
	LogFactory logger.LogFactory
	// UploadSinkFactory builds the optional per-step upload sink a job state
	// enqueues graph objects into as they're added. May be nil.
	UploadSinkFactory func(step models.StepID) UploadSink
}

// Scheduler executes a dependency graph of steps with bounded concurrency,
// honoring step start states, dependency-failure propagation and fatal
// cancellation (spec.md §4.2).
type Scheduler struct {
	graph             *DependencyGraph
	startStates       map[models.StepID]models.StepStartState
	concurrency       int64
	store             *GraphObjectStore
	keyTracker        *DuplicateKeyTracker
	typeTracker       *TypeTracker
	dataStore         *DataStore
	cacheLoader       *cache.Loader
	uploadSinkFactory func(step models.StepID) UploadSink
	logFactory        logger.LogFactory
	log               logger.Log
}

// NewScheduler validates the dependency graph formed by steps and prepares a
// Scheduler able to run it. Construction fails the same way
// NewDependencyGraph does: a fatal configuration error raised before any
// execution (spec.md §4.1).
func NewScheduler(steps []models.Step, startStates map[models.StepID]models.StepStartState, cfg SchedulerConfig) (*Scheduler, error) {
	graph, err := NewDependencyGraph(steps)
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.LogFactory == nil {
		cfg.LogFactory = logger.NoOpLogFactory
	}
	if startStates == nil {
		startStates = map[models.StepID]models.StepStartState{}
	}
	return &Scheduler{
		graph:             graph,
		startStates:       startStates,
		concurrency:       int64(cfg.Concurrency),
		store:             NewGraphObjectStore(cfg.StorageDir),
		keyTracker:        NewDuplicateKeyTracker(),
		typeTracker:       NewTypeTracker(),
		dataStore:         NewDataStore(),
		cacheLoader:       cache.NewLoader(cfg.LogFactory("CacheLoader")),
		uploadSinkFactory: cfg.UploadSinkFactory,
		logFactory:        cfg.LogFactory,
		log:               cfg.LogFactory("Scheduler"),
	}, nil
}

// run holds the mutable state of a single Scheduler.Run invocation.
type run struct {
	mu       sync.Mutex
	wg       *workingGraph
	results  map[models.StepID]*models.StepResult
	sem      *semaphore.Weighted
	inFlight int
	paused   bool
	fatalErr error
	done     chan struct{}
	finished bool
}

func (r *run) finish() {
	if !r.finished {
		r.finished = true
		close(r.done)
	}
}

// Run executes the full dependency graph and returns the result vector
// ordered by the graph's overall topological order, regardless of actual
// completion order (spec.md §3 Invariants, §4.2 step 4). If a fatal error
// occurred, it is returned alongside the partial (best-effort) results.
func (s *Scheduler) Run(ctx context.Context) ([]models.StepResult, error) {
	s.log.Infof("starting run of %d step(s)", len(s.graph.steps))
	rt := &run{
		wg:      s.graph.newWorkingGraph(),
		results: s.seedResults(),
		sem:     semaphore.NewWeighted(s.concurrency),
		done:    make(chan struct{}),
	}

	rt.mu.Lock()
	s.tryDispatchLocked(ctx, rt)
	rt.mu.Unlock()

	<-rt.done

	ordered := s.orderedResults(rt.results)
	if rt.fatalErr != nil {
		s.log.Errorf("run aborted: %v", rt.fatalErr)
		return ordered, rt.fatalErr
	}
	s.log.Info("run complete")
	return ordered, nil
}

// seedResults seeds every step's result in topological order with DISABLED
// (if the step itself, or any transitive dependency, is disabled) or
// PENDING_EVALUATION otherwise (spec.md §4.2 "results").
func (s *Scheduler) seedResults() map[models.StepID]*models.StepResult {
	results := make(map[models.StepID]*models.StepResult, len(s.graph.steps))
	disabled := make(map[models.StepID]bool, len(s.graph.steps))

	for _, id := range s.graph.TopologicalOrder() {
		step := s.graph.Step(id)
		isDisabled := s.startStates[id].Disabled
		if !isDisabled {
			for _, dep := range s.graph.Dependencies(id) {
				if disabled[dep] {
					isDisabled = true
					break
				}
			}
		}
		disabled[id] = isDisabled

		status := models.StepStatusPendingEvaluation
		if isDisabled {
			status = models.StepStatusDisabled
		}
		results[id] = &models.StepResult{
			ID:            id,
			Name:          step.Name,
			DependsOn:     append([]models.StepID(nil), step.DependsOn...),
			DeclaredTypes: step.DeclaredTypes(),
			PartialTypes:  step.PartialTypes(),
			Status:        status,
		}
	}
	return results
}

// tryDispatchLocked implements spec.md §4.2 steps 1-2-3: compute leaves,
// dispatch every ready one that fits within the concurrency cap, and finish
// the run once nothing more can be dispatched and nothing is in flight.
// Callers must hold rt.mu.
func (s *Scheduler) tryDispatchLocked(ctx context.Context, rt *run) {
	if rt.paused {
		if rt.inFlight == 0 {
			rt.finish()
		}
		return
	}

	dispatchedAny := false
	for _, id := range rt.wg.leaves() {
		result := rt.results[id]
		if result.Status != models.StepStatusPendingEvaluation {
			// Disabled steps are seeded as DISABLED, not PENDING_EVALUATION, so
			// this also filters out disabled leaves left behind as barriers.
			continue
		}
		if !s.dependenciesTerminal(rt.results, id) {
			// Structurally ready (its deps were removed from the working graph
			// when THEY were dispatched) but not yet actually complete; wait for
			// the next completion event to re-check (spec.md §4.2 step 2).
			continue
		}
		if !rt.sem.TryAcquire(1) {
			break
		}
		rt.wg.remove(id)
		rt.inFlight++
		dispatchedAny = true
		// Dependencies are confirmed terminal above and terminal statuses are
		// immutable (spec.md §3 Invariants), so it's safe to snapshot their
		// health now, under the lock, rather than re-reading results from the
		// step's own goroutine without synchronization.
		depsUnhealthy := s.anyDependencyUnhealthy(rt.results, id)
		go s.executeStep(ctx, rt, id, depsUnhealthy)
	}

	if !dispatchedAny && rt.inFlight == 0 {
		rt.finish()
	}
}

func (s *Scheduler) dependenciesTerminal(results map[models.StepID]*models.StepResult, id models.StepID) bool {
	for _, dep := range s.graph.Dependencies(id) {
		if !results[dep].Status.Terminal() {
			return false
		}
	}
	return true
}

// executeStep runs a single dispatched step to completion and reports back
// into rt (spec.md §4.2 "executeStep"). depsUnhealthy was snapshotted by the
// caller while holding rt.mu, since dependencies are guaranteed terminal (and
// therefore immutable) at dispatch time.
func (s *Scheduler) executeStep(ctx context.Context, rt *run, id models.StepID, depsUnhealthy bool) {
	step := s.graph.Step(id)
	log := s.logFactory(fmt.Sprintf("Step[%s]", id))

	var sink UploadSink
	if s.uploadSinkFactory != nil {
		sink = s.uploadSinkFactory(id)
	}
	js := newJobState(step, s.store, s.keyTracker, s.typeTracker, s.dataStore, sink, log)

	status, stepErr, fatal := s.runHandlerOrCache(ctx, js, step, log, depsUnhealthy)

	if !fatal {
		if flushErr := js.Flush(ctx); flushErr != nil {
			log.Warnf("flush failed for step %q, downgrading to FAILURE: %v", id, flushErr)
			status = models.StepStatusFailure
		} else if waitErr := js.WaitUntilUploadsComplete(ctx); waitErr != nil {
			log.Warnf("waiting for uploads failed for step %q, downgrading to FAILURE: %v", id, waitErr)
			status = models.StepStatusFailure
		}
	}

	encountered := s.typeTracker.EncounteredTypes(id)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if fatal {
		rt.paused = true
		rt.fatalErr = fmt.Errorf("step %q failed fatally: %w", id, stepErr)
		rt.results[id].Status = models.StepStatusFailure
	} else {
		rt.results[id].Status = status
	}
	rt.results[id].EncounteredTypes = encountered

	rt.inFlight--
	rt.sem.Release(1)
	s.tryDispatchLocked(ctx, rt)
}

// runHandlerOrCache implements spec.md §4.2 executeStep steps 1-4: try the
// cache loader first if configured, otherwise run the handler; classify the
// outcome into a status, error and fatality.
func (s *Scheduler) runHandlerOrCache(ctx context.Context, js *jobState, step *models.Step, log logger.Log, depsUnhealthy bool) (models.StepStatus, error, bool) {
	startState := s.startStates[step.ID]
	var status models.StepStatus

	if startState.HasCachePath() {
		loaded, err := s.cacheLoader.Load(ctx, startState.StepCachePath, js.stepCtx())
		if err != nil {
			return models.StepStatusFailure, err, false
		}
		if loaded > 0 {
			status = models.StepStatusCached
		}
		// loaded == 0: status stays unset and falls through to the handler,
		// per spec.md §9's resolution of the cache-miss open question.
	}

	if status == "" {
		if err := step.ExecutionHandler(ctx, js.stepCtx()); err != nil {
			if gerror.IsFatal(err) {
				return "", err, true
			}
			return models.StepStatusFailure, err, false
		}
		if depsUnhealthy {
			status = models.StepStatusPartialSuccessDueToDependencyFailure
		} else {
			status = models.StepStatusSuccess
			s.warnUndeclaredTypes(step, log)
		}
	}

	return status, nil, false
}

func (s *Scheduler) warnUndeclaredTypes(step *models.Step, log logger.Log) {
	declared := make(map[string]struct{})
	for _, t := range step.DeclaredTypes() {
		declared[t] = struct{}{}
	}
	for _, t := range s.typeTracker.EncounteredTypes(step.ID) {
		if _, ok := declared[t]; !ok {
			log.Warnf("step %q encountered undeclared type %q", step.ID, t)
		}
	}
}

// anyDependencyUnhealthy reports whether any direct dependency of id ended
// up FAILURE or PARTIAL_SUCCESS_DUE_TO_DEPENDENCY_FAILURE (spec.md §4.2
// executeStep step 3).
func (s *Scheduler) anyDependencyUnhealthy(results map[models.StepID]*models.StepResult, id models.StepID) bool {
	for _, dep := range s.graph.Dependencies(id) {
		switch results[dep].Status {
		case models.StepStatusFailure, models.StepStatusPartialSuccessDueToDependencyFailure:
			return true
		}
	}
	return false
}

// orderedResults returns the final results in the graph's overall
// topological order (spec.md §3 Invariants).
func (s *Scheduler) orderedResults(results map[models.StepID]*models.StepResult) []models.StepResult {
	order := s.graph.TopologicalOrder()
	ordered := make([]models.StepResult, 0, len(order))
	for _, id := range order {
		ordered = append(ordered, results[id].Clone())
	}
	return ordered
}
