package gerror

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageOnly(t *testing.T) {
	err := New(ErrCodeStepHandler, "boom")
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, ErrCodeStepHandler, err.Code())
	assert.False(t, err.IsFatal())
	assert.Nil(t, err.Unwrap())
}

func TestError_WrapIncludesInnerInMessage(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := New(ErrCodeSyncAPI, "upload failed").Wrap(inner)
	assert.Equal(t, "upload failed: connection refused", err.Error())
	assert.Equal(t, inner, err.Unwrap())
}

func TestError_FatalDoesNotMutateReceiver(t *testing.T) {
	base := New(ErrCodeStepHandler, "boom")
	fatal := base.Fatal()
	assert.False(t, base.IsFatal())
	assert.True(t, fatal.IsFatal())
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf(ErrCodeDuplicateKey, "duplicate key %q inserted by step %q", "e1", "step-a")
	assert.Equal(t, `duplicate key "e1" inserted by step "step-a"`, err.Error())
}

func TestAsGerror_FindsErrorThroughWrapping(t *testing.T) {
	ge := New(ErrCodeConfiguration, "bad config").Fatal()
	wrapped := fmt.Errorf("loading: %w", ge)

	found, ok := AsGerror(wrapped)
	require := assert.New(t)
	require.True(ok)
	require.Equal(ErrCodeConfiguration, found.Code())
	require.True(found.IsFatal())
}

func TestAsGerror_NilAndPlainErrorsDontMatch(t *testing.T) {
	_, ok := AsGerror(nil)
	assert.False(t, ok)

	_, ok = AsGerror(fmt.Errorf("plain error"))
	assert.False(t, ok)
}

func TestIsFatal_TrueOnlyForFatalGerror(t *testing.T) {
	assert.True(t, IsFatal(NewConfigurationError("missing field")))
	assert.False(t, IsFatal(New(ErrCodeStepHandler, "boom")))
	assert.False(t, IsFatal(fmt.Errorf("plain error")))
}

func TestHasCode_MatchesWrappedCode(t *testing.T) {
	err := fmt.Errorf("context: %w", NewUploadAfterJobEndedError("job-1"))
	assert.True(t, HasCode(err, ErrCodeUploadAfterJobEnded))
	assert.False(t, HasCode(err, ErrCodeSyncAPI))
}

func TestNewSyncAPIError_WrapsInnerError(t *testing.T) {
	inner := fmt.Errorf("timeout")
	err := NewSyncAPIError("upload failed", inner)
	assert.Equal(t, ErrCodeSyncAPI, err.Code())
	assert.False(t, err.IsFatal())
	assert.ErrorIs(t, err, inner)
}

func TestNewDuplicateKeyError_IsNonFatal(t *testing.T) {
	err := NewDuplicateKeyError("e1", "step-a")
	assert.False(t, err.IsFatal())
	assert.Equal(t, ErrCodeDuplicateKey, err.Code())
}
