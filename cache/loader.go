// Package cache implements the step-level cache loader (spec.md §4.4): a
// substitute for running a step's executionHandler that replays
// pre-materialized graph objects from disk.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jupiterone/integration-sdk-go/common/logger"
	"github.com/jupiterone/integration-sdk-go/common/models"
)

// Loader reads entities/ and relationships/ subdirectories of a base
// directory as sequences of parsed graph-object files and injects each
// parsed batch into a step's job state (spec.md §4.4). The on-disk file
// format itself is a collaborator spec.md places out of scope; this loader
// reads the same JSON-array-of-objects layout the engine's own graph object
// store writes on flush, so a step's output can be replayed as a cache hit.
type Loader struct {
	log logger.Log
}

func NewLoader(log logger.Log) *Loader {
	if log == nil {
		log = logger.NewNoOpLog()
	}
	return &Loader{log: log}
}

// Load reads every file under baseDir/entities and baseDir/relationships,
// in file-name order, and adds their contents to stepCtx.JobState. It
// returns the total number of entities and relationships loaded. Errors
// during iteration propagate to the caller and become a step FAILURE
// (spec.md §4.4).
func (l *Loader) Load(ctx context.Context, baseDir string, stepCtx *models.StepContext) (int, error) {
	entityCount, err := l.loadEntities(ctx, baseDir, stepCtx)
	if err != nil {
		return 0, fmt.Errorf("error loading cached entities: %w", err)
	}
	relCount, err := l.loadRelationships(ctx, baseDir, stepCtx)
	if err != nil {
		return 0, fmt.Errorf("error loading cached relationships: %w", err)
	}
	total := entityCount + relCount
	if total == 0 {
		l.log.Warnf("no cached graph objects found under %q for step %q", baseDir, stepCtx.Step.ID)
	}
	return total, nil
}

func (l *Loader) loadEntities(ctx context.Context, baseDir string, stepCtx *models.StepContext) (int, error) {
	files, err := listFiles(filepath.Join(baseDir, "entities"))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, path := range files {
		var batch []models.Entity
		if err := readJSONFile(path, &batch); err != nil {
			return count, err
		}
		if err := stepCtx.JobState.AddEntities(ctx, batch); err != nil {
			return count, err
		}
		count += len(batch)
	}
	return count, nil
}

func (l *Loader) loadRelationships(ctx context.Context, baseDir string, stepCtx *models.StepContext) (int, error) {
	files, err := listFiles(filepath.Join(baseDir, "relationships"))
	if err != nil {
		return 0, err
	}
	count := 0
	for _, path := range files {
		var batch []models.Relationship
		if err := readJSONFile(path, &batch); err != nil {
			return count, err
		}
		if err := stepCtx.JobState.AddRelationships(ctx, batch); err != nil {
			return count, err
		}
		count += len(batch)
	}
	return count, nil
}

// listFiles returns the sorted, full paths of files directly inside dir. A
// missing directory is treated as zero files rather than an error, since a
// step's cache may legitimately contain only entities or only relationships.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
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
