package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jupiterone/integration-sdk-go/common/models"
)

// GraphObjectStore is the run-scoped, append-only-per-step store backing
// the Job State's add/find/iterate operations (spec.md §4.3, §5). Writes
// made by a step are buffered until that step calls Flush; only then do
// they become visible to findEntity/iterateEntities/iterateRelationships
// for every other step (spec.md §5 "Ordering guarantees").
//
// If a base directory is configured, Flush also materializes the step's
// batch to entities/<stepID>.json and relationships/<stepID>.json under
// that directory — the same on-disk layout the cache loader (cache
// package) reads back, so a step's own output can be replayed as a cache
// hit in a later run (spec.md §8 "Round-trip").
type GraphObjectStore struct {
	baseDir string

	mu                 sync.RWMutex
	entitiesByKey      map[string]models.Entity
	entityKeysByType   map[string][]string
	relationshipsByKey map[string]models.Relationship
	relKeysByType      map[string][]string

	pendingMu sync.Mutex
	pending   map[models.StepID]*pendingBatch
}

type pendingBatch struct {
	entities      []models.Entity
	relationships []models.Relationship
}

func NewGraphObjectStore(baseDir string) *GraphObjectStore {
	return &GraphObjectStore{
		baseDir:            baseDir,
		entitiesByKey:      make(map[string]models.Entity),
		entityKeysByType:   make(map[string][]string),
		relationshipsByKey: make(map[string]models.Relationship),
		relKeysByType:      make(map[string][]string),
		pending:            make(map[models.StepID]*pendingBatch),
	}
}

// StageEntity buffers an entity write for step; it is not visible to other
// steps (or to findEntity/iterateEntities from this step) until Flush.
func (s *GraphObjectStore) StageEntity(step models.StepID, e models.Entity) {
	s.pendingMu.Lock()
	b := s.batchForLocked(step)
	b.entities = append(b.entities, e)
	s.pendingMu.Unlock()
}

// StageRelationship buffers a relationship write for step.
func (s *GraphObjectStore) StageRelationship(step models.StepID, r models.Relationship) {
	s.pendingMu.Lock()
	b := s.batchForLocked(step)
	b.relationships = append(b.relationships, r)
	s.pendingMu.Unlock()
}

func (s *GraphObjectStore) batchForLocked(step models.StepID) *pendingBatch {
	b, ok := s.pending[step]
	if !ok {
		b = &pendingBatch{}
		s.pending[step] = b
	}
	return b
}

// Flush commits step's buffered writes to the store, making them visible,
// and (if a base directory is configured) materializes them to disk.
func (s *GraphObjectStore) Flush(ctx context.Context, step models.StepID) error {
	s.pendingMu.Lock()
	batch, ok := s.pending[step]
	if ok {
		delete(s.pending, step)
	}
	s.pendingMu.Unlock()
	if !ok || (len(batch.entities) == 0 && len(batch.relationships) == 0) {
		return nil
	}

	s.mu.Lock()
	for _, e := range batch.entities {
		s.entitiesByKey[e.Key] = e
		s.entityKeysByType[e.Type] = append(s.entityKeysByType[e.Type], e.Key)
	}
	for _, r := range batch.relationships {
		s.relationshipsByKey[r.Key] = r
		s.relKeysByType[r.Type] = append(s.relKeysByType[r.Type], r.Key)
	}
	s.mu.Unlock()

	if s.baseDir == "" {
		return nil
	}
	if len(batch.entities) > 0 {
		if err := writeObjectFile(s.baseDir, "entities", string(step), batch.entities); err != nil {
			return fmt.Errorf("error flushing entities for step %q: %w", step, err)
		}
	}
	if len(batch.relationships) > 0 {
		if err := writeObjectFile(s.baseDir, "relationships", string(step), batch.relationships); err != nil {
			return fmt.Errorf("error flushing relationships for step %q: %w", step, err)
		}
	}
	return nil
}

func writeObjectFile(baseDir, subdir, stepID string, objects interface{}) error {
	dir := filepath.Join(baseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(objects)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, stepID+".json")
	return os.WriteFile(path, data, 0o644)
}

// FindEntity looks up an entity by key across the entire run's committed
// store (spec.md §4.3).
func (s *GraphObjectStore) FindEntity(key string) (*models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entitiesByKey[key]
	if !ok {
		return nil, false
	}
	return &e, true
}

// IterateEntities streams committed entities matching filter without
// materializing the full set, so callers can stop early (spec.md §9
// "Laziness of iteration").
func (s *GraphObjectStore) IterateEntities(filter models.EntityTargetFilter, fn func(models.Entity) error) error {
	keys := s.entityKeysSnapshot(filter.Type)
	for _, key := range keys {
		s.mu.RLock()
		e, ok := s.entitiesByKey[key]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// IterateRelationships streams committed relationships matching filter.
func (s *GraphObjectStore) IterateRelationships(filter models.RelationshipTargetFilter, fn func(models.Relationship) error) error {
	keys := s.relKeysSnapshot(filter.Type)
	for _, key := range keys {
		s.mu.RLock()
		r, ok := s.relationshipsByKey[key]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraphObjectStore) entityKeysSnapshot(typ string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if typ == "" {
		keys := make([]string, 0, len(s.entitiesByKey))
		for k := range s.entitiesByKey {
			keys = append(keys, k)
		}
		return keys
	}
	return append([]string(nil), s.entityKeysByType[typ]...)
}

func (s *GraphObjectStore) relKeysSnapshot(typ string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if typ == "" {
		keys := make([]string, 0, len(s.relationshipsByKey))
		for k := range s.relationshipsByKey {
			keys = append(keys, k)
		}
		return keys
	}
	return append([]string(nil), s.relKeysByType[typ]...)
}
