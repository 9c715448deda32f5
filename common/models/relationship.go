package models

import "encoding/json"

// RelationshipMapping is the target descriptor a mapped relationship carries
// in place of a concrete _toEntityKey (spec.md §3): it identifies the target
// entity by a set of property filters rather than by key, letting the
// persister resolve the target after the fact.
type RelationshipMapping struct {
	TargetFilterKeys   [][]string             `json:"targetFilterKeys"`
	TargetEntity       map[string]interface{} `json:"targetEntity"`
	SkipTargetCreation bool                   `json:"skipTargetCreation,omitempty"`
}

// Relationship is a graph relationship: { _key, _type, _fromEntityKey,
// _toEntityKey, ...properties } (spec.md §3). A mapped relationship has an
// empty ToEntityKey and a non-nil Mapping instead.
type Relationship struct {
	Key           string
	Type          string
	FromEntityKey string
	ToEntityKey   string
	Mapping       *RelationshipMapping
	Properties    map[string]interface{}
}

func (r Relationship) IsMapped() bool {
	return r.Mapping != nil
}

var relationshipReservedKeys = map[string]bool{
	"_key": true, "_type": true, "_fromEntityKey": true, "_toEntityKey": true, "_mapping": true,
}

func (r Relationship) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Properties)+4)
	for k, v := range r.Properties {
		out[k] = v
	}
	out["_key"] = r.Key
	out["_type"] = r.Type
	out["_fromEntityKey"] = r.FromEntityKey
	if r.Mapping != nil {
		out["_mapping"] = r.Mapping
	} else {
		out["_toEntityKey"] = r.ToEntityKey
	}
	return json.Marshal(out)
}

func (r *Relationship) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["_key"]; ok {
		if err := json.Unmarshal(v, &r.Key); err != nil {
			return err
		}
	}
	if v, ok := raw["_type"]; ok {
		if err := json.Unmarshal(v, &r.Type); err != nil {
			return err
		}
	}
	if v, ok := raw["_fromEntityKey"]; ok {
		if err := json.Unmarshal(v, &r.FromEntityKey); err != nil {
			return err
		}
	}
	if v, ok := raw["_toEntityKey"]; ok {
		if err := json.Unmarshal(v, &r.ToEntityKey); err != nil {
			return err
		}
	}
	if v, ok := raw["_mapping"]; ok {
		var mapping RelationshipMapping
		if err := json.Unmarshal(v, &mapping); err != nil {
			return err
		}
		r.Mapping = &mapping
	}
	props := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if relationshipReservedKeys[k] {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		props[k] = val
	}
	r.Properties = props
	return nil
}

// RelationshipTargetFilter describes the criteria used by iterateRelationships
// to select a subset of the store (spec.md §4.3).
type RelationshipTargetFilter struct {
	Type string
}
