package commands

import "github.com/jupiterone/integration-sdk-go/common/models"

// StepCatalog supplies the steps a collector binary wants to run. The
// engine itself has no opinion on what a collector collects (spec.md §1);
// a real collector replaces this with its own step definitions before
// building, e.g. by assigning StepCatalog in an init() in its own package.
var StepCatalog = func() []models.Step {
	return nil
}
