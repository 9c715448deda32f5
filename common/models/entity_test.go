package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_MarshalUnmarshalRoundTrip(t *testing.T) {
	e := Entity{
		Key:   "e1",
		Type:  "foo_entity",
		Class: []string{"Resource"},
		RawData: []RawDataEntry{
			{Name: "default", RawData: map[string]interface{}{"raw": "value"}},
		},
		Properties: map[string]interface{}{"name": "thing", "count": float64(3)},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var out Entity
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, e.Key, out.Key)
	assert.Equal(t, e.Type, out.Type)
	assert.Equal(t, e.Class, out.Class)
	assert.Equal(t, "thing", out.Properties["name"])
	assert.Equal(t, float64(3), out.Properties["count"])
	require.Len(t, out.RawData, 1)
	assert.Equal(t, "value", out.RawData[0].RawData["raw"])
}

func TestEntity_UnmarshalAcceptsBareStringClass(t *testing.T) {
	var e Entity
	require.NoError(t, json.Unmarshal([]byte(`{"_key":"e1","_type":"foo","_class":"Resource"}`), &e))
	assert.Equal(t, []string{"Resource"}, e.Class)
}

func TestEntity_PropertiesExcludeReservedKeys(t *testing.T) {
	var e Entity
	require.NoError(t, json.Unmarshal([]byte(`{"_key":"e1","_type":"foo","name":"x"}`), &e))
	_, hasKey := e.Properties["_key"]
	assert.False(t, hasKey)
	assert.Equal(t, "x", e.Properties["name"])
}
