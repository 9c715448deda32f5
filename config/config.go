// Package config implements the engine's config surface collaborator
// (spec.md §6): a map from logical field name to a declared type, sourced
// from upper-snake-case environment variables via viper.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/jupiterone/integration-sdk-go/common/gerror"
)

// FieldType is a config field's declared type (spec.md §6 "Config surface").
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeBoolean FieldType = "boolean"
)

// Field describes one entry of a config Spec.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// Spec is the full set of fields a caller expects to load (spec.md §6).
type Spec []Field

// Values holds the loaded, typed config values, keyed by field name.
type Values map[string]interface{}

// String returns the loaded value of a string field.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Bool returns the loaded value of a boolean field.
func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// Load binds every field in spec to its upper-snake-case environment
// variable and parses it according to its declared type (spec.md §6): a
// missing required field, or a boolean field whose value is not
// case-insensitively "true"/"false", is a fatal configuration error.
func Load(spec Spec) (Values, error) {
	v := viper.New()
	v.AutomaticEnv()

	values := make(Values, len(spec))
	for _, field := range spec {
		envVar := envVarName(field.Name)
		if err := v.BindEnv(field.Name, envVar); err != nil {
			return nil, gerror.NewConfigurationError("error binding env var " + envVar + ": " + err.Error())
		}

		raw := v.GetString(field.Name)
		if raw == "" {
			if field.Required {
				return nil, gerror.NewConfigurationError("missing required config field " + field.Name + " (env var " + envVar + ")")
			}
			continue
		}

		switch field.Type {
		case FieldTypeBoolean:
			b, err := parseBool(raw)
			if err != nil {
				return nil, gerror.NewConfigurationError("config field " + field.Name + ": " + err.Error())
			}
			values[field.Name] = b
		default:
			values[field.Name] = raw
		}
	}
	return values, nil
}

func envVarName(fieldName string) string {
	return strings.ToUpper(strings.ReplaceAll(fieldName, ".", "_"))
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errInvalidBool(raw)
	}
}

type invalidBoolError string

func (e invalidBoolError) Error() string {
	return "invalid boolean value " + string(e) + ": must be \"true\" or \"false\""
}

func errInvalidBool(raw string) error {
	return invalidBoolError(raw)
}
