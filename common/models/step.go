package models

import (
	"context"

	"github.com/jupiterone/integration-sdk-go/common/logger"
)

// StepID uniquely identifies a Step within a single run (spec.md §3).
type StepID string

// TypeSchema declares one _type a step may emit, and whether the step
// considers its coverage of that type partial (spec.md §3).
type TypeSchema struct {
	Type    string
	Partial bool
}

// BeforeAddEntityHook runs immediately before an entity is admitted to the
// store, letting a step catalog attach cross-cutting properties to every
// entity a step adds (spec.md §4.3, §9 "Hooks / middleware"). The default
// implementation used when a step declares none is the identity function.
type BeforeAddEntityHook func(ctx context.Context, stepCtx *StepContext, e Entity) (Entity, error)

// IdentityBeforeAddEntity is the default BeforeAddEntityHook: it returns the
// entity unchanged.
func IdentityBeforeAddEntity(ctx context.Context, stepCtx *StepContext, e Entity) (Entity, error) {
	return e, nil
}

// ExecutionHandler is the effect a Step runs, given a context scoped to that
// step's execution (spec.md §3).
type ExecutionHandler func(ctx context.Context, stepCtx *StepContext) error

// Step is a declarative unit of collection work (spec.md §3). DependsOn must
// name other steps in the same run; a dependency graph built from a set of
// Steps must be acyclic.
type Step struct {
	ID                  StepID
	Name                string
	DependsOn           []StepID
	Entities            []TypeSchema
	Relationships       []TypeSchema
	MappedRelationships []TypeSchema
	BeforeAddEntity     BeforeAddEntityHook
	ExecutionHandler    ExecutionHandler
}

// DeclaredTypes returns every _type this step declares across entities,
// relationships and mapped relationships.
func (s *Step) DeclaredTypes() []string {
	types := make([]string, 0, len(s.Entities)+len(s.Relationships)+len(s.MappedRelationships))
	for _, schema := range s.Entities {
		types = append(types, schema.Type)
	}
	for _, schema := range s.Relationships {
		types = append(types, schema.Type)
	}
	for _, schema := range s.MappedRelationships {
		types = append(types, schema.Type)
	}
	return types
}

// PartialTypes returns every _type this step declares as partial.
func (s *Step) PartialTypes() []string {
	var types []string
	for _, schemas := range [][]TypeSchema{s.Entities, s.Relationships, s.MappedRelationships} {
		for _, schema := range schemas {
			if schema.Partial {
				types = append(types, schema.Type)
			}
		}
	}
	return types
}

// beforeAddEntity returns the step's hook, or the identity hook if none was declared.
func (s *Step) beforeAddEntity() BeforeAddEntityHook {
	if s.BeforeAddEntity != nil {
		return s.BeforeAddEntity
	}
	return IdentityBeforeAddEntity
}

// BeforeAddEntityHook exposes the effective hook (declared or identity) for callers
// outside this package, such as the job state implementation.
func (s *Step) BeforeAddEntityHook() BeforeAddEntityHook {
	return s.beforeAddEntity()
}

// StepStartState controls whether a step runs, and optionally redirects
// execution to load a cached artifact from disk instead (spec.md §3).
type StepStartState struct {
	Disabled      bool
	StepCachePath string
}

// HasCachePath reports whether a cache path was configured for the step.
// spec.md §9 resolves the source's unreachable `??` as a plain truthiness
// check on StepCachePath; this is that check.
func (s StepStartState) HasCachePath() bool {
	return s.StepCachePath != ""
}

// JobState is the only surface through which a step reads or writes shared
// run state (spec.md §4.3). Implementations are per-step façades sharing the
// run's trackers and data store.
type JobState interface {
	AddEntity(ctx context.Context, e Entity) error
	AddEntities(ctx context.Context, es []Entity) error
	AddRelationship(ctx context.Context, r Relationship) error
	AddRelationships(ctx context.Context, rs []Relationship) error
	FindEntity(ctx context.Context, key string) (*Entity, error)
	IterateEntities(ctx context.Context, filter EntityTargetFilter, fn func(Entity) error) error
	IterateRelationships(ctx context.Context, filter RelationshipTargetFilter, fn func(Relationship) error) error
	SetData(scope, key string, value interface{})
	GetData(scope, key string) (interface{}, bool)
	Flush(ctx context.Context) error
	WaitUntilUploadsComplete(ctx context.Context) error
}

// StepContext is handed to a step's ExecutionHandler and to its
// BeforeAddEntityHook.
type StepContext struct {
	Step     *Step
	JobState JobState
	Log      logger.Log
}
