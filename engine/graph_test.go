package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterone/integration-sdk-go/common/models"
)

func TestNewDependencyGraph_TopologicalOrder(t *testing.T) {
	steps := []models.Step{step("C", "B"), step("B", "A"), step("A")}
	g, err := NewDependencyGraph(steps)
	require.NoError(t, err)

	order := g.TopologicalOrder()
	index := make(map[models.StepID]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	assert.Less(t, index["A"], index["B"])
	assert.Less(t, index["B"], index["C"])
}

func TestNewDependencyGraph_UnknownDependency(t *testing.T) {
	steps := []models.Step{step("A", "ghost")}
	_, err := NewDependencyGraph(steps)
	require.Error(t, err)
}

func TestNewDependencyGraph_DuplicateID(t *testing.T) {
	steps := []models.Step{step("A"), step("A")}
	_, err := NewDependencyGraph(steps)
	require.Error(t, err)
}

func TestNewDependencyGraph_Cycle(t *testing.T) {
	steps := []models.Step{step("A", "B"), step("B", "A")}
	_, err := NewDependencyGraph(steps)
	require.Error(t, err)
}

func TestWorkingGraph_LeavesAndRemove(t *testing.T) {
	steps := []models.Step{step("A"), step("B", "A"), step("C", "A")}
	g, err := NewDependencyGraph(steps)
	require.NoError(t, err)

	wg := g.newWorkingGraph()
	assert.Equal(t, []models.StepID{"A"}, wg.leaves())

	wg.remove("A")
	assert.ElementsMatch(t, []models.StepID{"B", "C"}, wg.leaves())

	wg.remove("B")
	wg.remove("C")
	assert.True(t, wg.empty())
}
