package models

import "encoding/json"

// RawDataEntry is a named snapshot of the raw upstream data a graph object
// was derived from (spec.md §3). Entries are what shrinkRawData truncates
// when an upload batch is too large (spec.md §4.5).
type RawDataEntry struct {
	Name    string                 `json:"name"`
	RawData map[string]interface{} `json:"rawData"`
}

// Entity is a graph entity: { _key, _type, _class, ...properties, _rawData? }
// (spec.md §3). Properties holds every field beyond the reserved ones, kept
// separate from them so callers get typed access to _key/_type/_class/
// _rawData without losing arbitrary collected properties.
type Entity struct {
	Key        string
	Type       string
	Class      []string
	RawData    []RawDataEntry
	Properties map[string]interface{}
}

// reserved top-level keys that are not part of Properties.
var entityReservedKeys = map[string]bool{
	"_key": true, "_type": true, "_class": true, "_rawData": true,
}

func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Properties)+4)
	for k, v := range e.Properties {
		out[k] = v
	}
	out["_key"] = e.Key
	out["_type"] = e.Type
	if len(e.Class) > 0 {
		out["_class"] = e.Class
	}
	if len(e.RawData) > 0 {
		out["_rawData"] = e.RawData
	}
	return json.Marshal(out)
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["_key"]; ok {
		if err := json.Unmarshal(v, &e.Key); err != nil {
			return err
		}
	}
	if v, ok := raw["_type"]; ok {
		if err := json.Unmarshal(v, &e.Type); err != nil {
			return err
		}
	}
	if v, ok := raw["_class"]; ok {
		if err := json.Unmarshal(v, &e.Class); err != nil {
			// _class may be encoded as a bare string rather than an array
			var single string
			if err2 := json.Unmarshal(v, &single); err2 != nil {
				return err
			}
			e.Class = []string{single}
		}
	}
	if v, ok := raw["_rawData"]; ok {
		if err := json.Unmarshal(v, &e.RawData); err != nil {
			return err
		}
	}
	props := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if entityReservedKeys[k] {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		props[k] = val
	}
	e.Properties = props
	return nil
}

// EntityTargetFilter describes the criteria used by iterateEntities to select
// a subset of the store (spec.md §4.3).
type EntityTargetFilter struct {
	Type string
}
