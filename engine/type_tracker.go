package engine

import (
	"sort"
	"sync"

	"github.com/jupiterone/integration-sdk-go/common/models"
)

// TypeTracker records, per step id, the set of entity/relationship _type
// values observed during execution (spec.md §2.1). It is a run-scoped
// singleton shared across every step's job state; writes for a given step
// only ever happen while that step is executing (spec.md §5), but the
// tracker still guards itself with a mutex so a parallel scheduler
// (concurrency > 1) stays correct.
type TypeTracker struct {
	mu    sync.Mutex
	types map[models.StepID]map[string]struct{}
}

func NewTypeTracker() *TypeTracker {
	return &TypeTracker{types: make(map[models.StepID]map[string]struct{})}
}

// Record notes that step encountered an object of the given _type.
func (t *TypeTracker) Record(step models.StepID, objType string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.types[step]
	if !ok {
		set = make(map[string]struct{})
		t.types[step] = set
	}
	set[objType] = struct{}{}
}

// EncounteredTypes returns the sorted set of types recorded for a step.
func (t *TypeTracker) EncounteredTypes(step models.StepID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.types[step]
	types := make([]string, 0, len(set))
	for tp := range set {
		types = append(types, tp)
	}
	sort.Strings(types)
	return types
}
