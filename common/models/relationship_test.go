package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationship_MarshalUnmarshalRoundTrip(t *testing.T) {
	r := Relationship{
		Key:           "r1",
		Type:          "foo_relates_to_bar",
		FromEntityKey: "e1",
		ToEntityKey:   "e2",
		Properties:    map[string]interface{}{"weight": float64(1)},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out Relationship
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, r.Key, out.Key)
	assert.Equal(t, r.FromEntityKey, out.FromEntityKey)
	assert.Equal(t, r.ToEntityKey, out.ToEntityKey)
	assert.False(t, out.IsMapped())
}

func TestRelationship_MappedRelationshipOmitsToEntityKey(t *testing.T) {
	r := Relationship{
		Key:           "r1",
		Type:          "foo_relates_to_bar",
		FromEntityKey: "e1",
		Mapping: &RelationshipMapping{
			TargetFilterKeys: [][]string{{"_type", "_key"}},
			TargetEntity:     map[string]interface{}{"_type": "bar", "_key": "e2"},
		},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	_, hasToKey := raw["_toEntityKey"]
	assert.False(t, hasToKey)
	assert.Contains(t, raw, "_mapping")

	var out Relationship
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.IsMapped())
	assert.Equal(t, "bar", out.Mapping.TargetEntity["_type"])
}
