package engine

import (
	"sync"

	"github.com/jupiterone/integration-sdk-go/common/gerror"
	"github.com/jupiterone/integration-sdk-go/common/models"
)

// DuplicateKeyTracker is the process-wide set of _key values admitted so
// far, used to reject duplicates at insertion time (spec.md §2.2). The
// first insertion of a given key wins; every later attempt is rejected with
// a non-fatal DuplicateKeyError naming the offending key and the step that
// made the second attempt (spec.md §4.3 "Duplicate key policy").
type DuplicateKeyTracker struct {
	mu   sync.Mutex
	keys map[string]models.StepID
}

func NewDuplicateKeyTracker() *DuplicateKeyTracker {
	return &DuplicateKeyTracker{keys: make(map[string]models.StepID)}
}

// Admit registers key as inserted by step. It returns a DuplicateKeyError if
// the key was already admitted by an earlier (possibly the same) step.
func (t *DuplicateKeyTracker) Admit(key string, step models.StepID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.keys[key]; exists {
		return gerror.NewDuplicateKeyError(key, string(step))
	}
	t.keys[key] = step
	return nil
}
