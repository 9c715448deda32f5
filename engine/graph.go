package engine

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/jupiterone/integration-sdk-go/common/gerror"
	"github.com/jupiterone/integration-sdk-go/common/models"
)

// DependencyGraph is the step dependency DAG (spec.md §4.1). It is built
// once per run from a flat list of Steps and lives until the run completes;
// the scheduler works against a mutable clone (workingGraph) rather than
// against this graph directly, so the original topological order always
// remains available for ordering the final results (spec.md §4.2 step 4).
type DependencyGraph struct {
	steps        map[models.StepID]*models.Step
	dependencies map[models.StepID][]models.StepID // id -> ids it depends on
	dependents   map[models.StepID][]models.StepID // id -> ids that depend on it
	topoOrder    []models.StepID
}

// NewDependencyGraph validates and indexes steps, computing their overall
// topological order. Construction fails with a fatal configuration error if
// a dependsOn names an unknown step id or the graph contains a cycle
// (spec.md §4.1).
func NewDependencyGraph(steps []models.Step) (*DependencyGraph, error) {
	g := &DependencyGraph{
		steps:        make(map[models.StepID]*models.Step, len(steps)),
		dependencies: make(map[models.StepID][]models.StepID, len(steps)),
		dependents:   make(map[models.StepID][]models.StepID, len(steps)),
	}

	var errs *multierror.Error
	for i := range steps {
		step := &steps[i]
		if _, exists := g.steps[step.ID]; exists {
			errs = multierror.Append(errs, fmt.Errorf("duplicate step id %q", step.ID))
			continue
		}
		g.steps[step.ID] = step
	}
	if errs.ErrorOrNil() != nil {
		return nil, gerror.NewConfigurationError(errs.Error())
	}

	for id, step := range g.steps {
		for _, dep := range step.DependsOn {
			if _, ok := g.steps[dep]; !ok {
				errs = multierror.Append(errs, fmt.Errorf("step %q depends on unknown step %q", id, dep))
				continue
			}
			g.dependencies[id] = append(g.dependencies[id], dep)
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}
	if errs.ErrorOrNil() != nil {
		return nil, gerror.NewConfigurationError(errs.Error())
	}

	order, err := g.topologicalOrder()
	if err != nil {
		return nil, gerror.NewConfigurationError(err.Error()).Wrap(err)
	}
	g.topoOrder = order
	return g, nil
}

// topologicalOrder computes a stable topological order over the graph using
// Kahn's algorithm, iterating ready nodes in step-id order so the result is
// deterministic across runs. It fails if a cycle remains.
func (g *DependencyGraph) topologicalOrder() ([]models.StepID, error) {
	remaining := make(map[models.StepID]int, len(g.steps))
	ids := make([]models.StepID, 0, len(g.steps))
	for id := range g.steps {
		remaining[id] = len(g.dependencies[id])
		ids = append(ids, id)
	}
	sortStepIDs(ids)

	var order []models.StepID
	for len(order) < len(g.steps) {
		progressed := false
		for _, id := range ids {
			if remaining[id] != 0 {
				continue
			}
			if contains(order, id) {
				continue
			}
			order = append(order, id)
			remaining[id] = -1 // mark as emitted
			for _, dependent := range g.dependents[id] {
				if remaining[dependent] > 0 {
					remaining[dependent]--
				}
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("dependency graph contains a cycle")
		}
	}
	return order, nil
}

func contains(ids []models.StepID, id models.StepID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func sortStepIDs(ids []models.StepID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// TopologicalOrder returns the graph's overall topological order, computed
// once at construction.
func (g *DependencyGraph) TopologicalOrder() []models.StepID {
	return append([]models.StepID(nil), g.topoOrder...)
}

// Step returns the step with the given id.
func (g *DependencyGraph) Step(id models.StepID) *models.Step {
	return g.steps[id]
}

// Dependencies returns the ids a step directly depends on.
func (g *DependencyGraph) Dependencies(id models.StepID) []models.StepID {
	return g.dependencies[id]
}

// Dependents returns the ids that directly depend on a step.
func (g *DependencyGraph) Dependents(id models.StepID) []models.StepID {
	return g.dependents[id]
}

// workingGraph is the scheduler's mutable clone of the DependencyGraph
// (spec.md §4.2 "workingGraph"). Nodes are removed as they're dispatched,
// which detaches them from their dependents' remaining-dependency counts.
// This mutates a clone rather than the DependencyGraph itself (see
// DESIGN.md for the alternative, counter-based design spec.md §9 allows).
type workingGraph struct {
	remainingDeps map[models.StepID]map[models.StepID]struct{}
	dependents    map[models.StepID][]models.StepID
}

func (g *DependencyGraph) newWorkingGraph() *workingGraph {
	w := &workingGraph{
		remainingDeps: make(map[models.StepID]map[models.StepID]struct{}, len(g.steps)),
		dependents:    make(map[models.StepID][]models.StepID, len(g.steps)),
	}
	for id := range g.steps {
		deps := make(map[models.StepID]struct{}, len(g.dependencies[id]))
		for _, dep := range g.dependencies[id] {
			deps[dep] = struct{}{}
		}
		w.remainingDeps[id] = deps
		w.dependents[id] = append([]models.StepID(nil), g.dependents[id]...)
	}
	return w
}

// leaves returns the ids still present in the working graph with no
// remaining dependencies, in a stable (sorted) order (spec.md §4.2 step 1).
func (w *workingGraph) leaves() []models.StepID {
	var ready []models.StepID
	for id, deps := range w.remainingDeps {
		if len(deps) == 0 {
			ready = append(ready, id)
		}
	}
	sortStepIDs(ready)
	return ready
}

// remove detaches id from the working graph, decrementing the remaining
// dependency count of every node that depends on it (spec.md §4.2 step 2).
func (w *workingGraph) remove(id models.StepID) {
	delete(w.remainingDeps, id)
	for _, dependent := range w.dependents[id] {
		if deps, ok := w.remainingDeps[dependent]; ok {
			delete(deps, id)
		}
	}
}

func (w *workingGraph) empty() bool {
	return len(w.remainingDeps) == 0
}
