package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterone/integration-sdk-go/common/gerror"
)

func TestLoad_StringAndBooleanFields(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://example.com")
	t.Setenv("SKIP_SYNCHRONIZATION", "TRUE")

	spec := Spec{
		{Name: "api_base_url", Type: FieldTypeString, Required: true},
		{Name: "skip_synchronization", Type: FieldTypeBoolean, Required: false},
	}

	values, err := Load(spec)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", values.String("api_base_url"))
	assert.True(t, values.Bool("skip_synchronization"))
}

func TestLoad_MissingRequiredFieldIsFatal(t *testing.T) {
	spec := Spec{
		{Name: "missing_required_field_xyz", Type: FieldTypeString, Required: true},
	}

	_, err := Load(spec)
	require.Error(t, err)
	assert.True(t, gerror.IsFatal(err))
	assert.True(t, gerror.HasCode(err, gerror.ErrCodeConfiguration))
}

func TestLoad_InvalidBooleanIsError(t *testing.T) {
	t.Setenv("SOME_FLAG_XYZ", "not-a-bool")

	spec := Spec{
		{Name: "some_flag_xyz", Type: FieldTypeBoolean, Required: true},
	}

	_, err := Load(spec)
	require.Error(t, err)
	assert.True(t, gerror.IsFatal(err))
}

func TestLoad_MissingOptionalFieldIsSkipped(t *testing.T) {
	spec := Spec{
		{Name: "optional_missing_xyz", Type: FieldTypeString, Required: false},
	}

	values, err := Load(spec)
	require.NoError(t, err)
	assert.Equal(t, "", values.String("optional_missing_xyz"))
}
