package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterone/integration-sdk-go/common/gerror"
)

func TestDuplicateKeyTracker_FirstWriterWins(t *testing.T) {
	tracker := NewDuplicateKeyTracker()

	require.NoError(t, tracker.Admit("k1", "stepA"))

	err := tracker.Admit("k1", "stepB")
	require.Error(t, err)
	assert.True(t, gerror.HasCode(err, gerror.ErrCodeDuplicateKey))
	assert.False(t, gerror.IsFatal(err))
}

func TestDuplicateKeyTracker_DistinctKeysAdmitted(t *testing.T) {
	tracker := NewDuplicateKeyTracker()
	require.NoError(t, tracker.Admit("k1", "stepA"))
	require.NoError(t, tracker.Admit("k2", "stepA"))
}
