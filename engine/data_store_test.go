package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataStore_SetGetScoped(t *testing.T) {
	store := NewDataStore()

	store.Set("stepA", "count", 42)
	v, ok := store.Get("stepA", "count")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = store.Get("stepB", "count")
	assert.False(t, ok, "scopes are independent")

	_, ok = store.Get("stepA", "missing")
	assert.False(t, ok)
}
