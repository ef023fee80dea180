package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskmanager "github.com/Swind/go-task-manager"
	"github.com/Swind/go-task-manager/core"
)

func newTestManager(t *testing.T, workers int) *taskmanager.TaskManager {
	t.Helper()
	tm := taskmanager.New(taskmanager.WithLogger(core.NewNoOpLogger()))
	require.NoError(t, tm.Start(workers))
	t.Cleanup(tm.Shutdown)
	return tm
}

func TestTreeSpec_Nodes(t *testing.T) {
	assert.Equal(t, 1, treeShape{Depth: 0, Width: 4}.nodes())
	assert.Equal(t, 1+3, treeShape{Depth: 1, Width: 3}.nodes())
	assert.Equal(t, 1+2+4+8, treeShape{Depth: 3, Width: 2}.nodes())
}

func TestTreeSpec_Validate(t *testing.T) {
	assert.NoError(t, treeShape{Depth: 0, Width: 1}.validate())
	assert.Error(t, treeShape{Depth: -1, Width: 1}.validate())
	assert.Error(t, treeShape{Depth: 1, Width: 0}.validate())
	assert.Error(t, treeShape{Depth: 1, Width: 1, Spin: -1}.validate())
}

func TestParseMix(t *testing.T) {
	mix, err := parseMix("high=1, normal=4,low=2")
	require.NoError(t, err)
	assert.Equal(t, 1, mix[core.PriorityHigh])
	assert.Equal(t, 4, mix[core.PriorityNormal])
	assert.Equal(t, 2, mix[core.PriorityLow])

	for _, bad := range []string{"", "high", "high=x", "high=-1", "urgent=1", "high=0,low=0"} {
		_, err := parseMix(bad)
		assert.Error(t, err, "mix %q", bad)
	}
}

// TestPriorityMix_Sequence verifies weighted interleaving
// Given: weights high=1, normal=2, low=1
// When: eight priorities are generated
// Then: each class appears in proportion to its weight
func TestPriorityMix_Sequence(t *testing.T) {
	// Arrange
	mix := priorityMix{core.PriorityHigh: 1, core.PriorityNormal: 2, core.PriorityLow: 1}

	// Act
	seq := mix.sequence(8)

	// Assert
	counts := map[core.Priority]int{}
	for _, p := range seq {
		counts[p]++
	}
	assert.Equal(t, 2, counts[core.PriorityHigh])
	assert.Equal(t, 4, counts[core.PriorityNormal])
	assert.Equal(t, 2, counts[core.PriorityLow])
}

// TestRunWorkload_ExecutesEveryNode verifies the fork/join trees are fully joined
// Given: a four-worker manager and six trees of depth 3 and width 3
// When: the workload runs
// Then: every node of every tree executed and no tree failed
func TestRunWorkload_ExecutesEveryNode(t *testing.T) {
	// Arrange
	tm := newTestManager(t, 4)
	shape := treeShape{Depth: 3, Width: 3, Spin: 10}
	mix, err := parseMix("high=1,normal=1,low=1")
	require.NoError(t, err)

	// Act
	report, err := runWorkload(context.Background(), tm, shape, mix, 6)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(6*shape.nodes()), report.Tasks)
	assert.Zero(t, report.Failed)
	assert.Len(t, report.PerClass, 3)
}

func TestRunWorkload_NoTrees(t *testing.T) {
	tm := newTestManager(t, 1)
	mix, err := parseMix("normal=1")
	require.NoError(t, err)

	report, err := runWorkload(context.Background(), tm, treeShape{Width: 1}, mix, 0)

	require.NoError(t, err)
	assert.Zero(t, report.Tasks)
}
