package entity

import (
	"fmt"
	"strings"
)

// Spec describes one entity declared in a config entry's options. A
// declaration looks like:
//
//	entities:
//	  - id: sensor-living-temp
//	    name: Living Room Temperature
//	    value_key: sensors.temperature
//	    live_key: online
//
// ValueKey and LiveKey are dotted paths into the coordinator's snapshot
// map. LiveKey is optional: when empty, the entity is live whenever the
// value path resolves.
type Spec struct {
	ID       string
	Name     string
	ValueKey string
	LiveKey  string
}

// SpecsFromOptions parses the "entities" list from an entry's options.
// A missing list yields no specs and no error; a malformed one fails.
func SpecsFromOptions(options map[string]interface{}) ([]Spec, error) {
	raw, ok := options["entities"]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("entity: options entities must be a list, got %T", raw)
	}

	specs := make([]Spec, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("entity: entities[%d] must be an object, got %T", i, item)
		}
		spec := Spec{
			ID:       stringOption(m, "id"),
			Name:     stringOption(m, "name"),
			ValueKey: stringOption(m, "value_key"),
			LiveKey:  stringOption(m, "live_key"),
		}
		if spec.ID == "" {
			return nil, fmt.Errorf("entity: entities[%d] is missing id", i)
		}
		if spec.ValueKey == "" {
			return nil, fmt.Errorf("entity: entities[%d] (%s) is missing value_key", i, spec.ID)
		}
		if spec.Name == "" {
			spec.Name = spec.ID
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func stringOption(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// MapDeriver returns a Deriver that resolves dotted paths against
// map-shaped snapshots. The value at valueKey becomes the entity value.
// Liveness comes from the bool at liveKey when given, otherwise from
// whether valueKey resolved at all.
func MapDeriver(valueKey, liveKey string) Deriver {
	return func(snapshot interface{}) Derived {
		m, ok := snapshot.(map[string]interface{})
		if !ok {
			return Derived{}
		}

		value, found := lookupPath(m, valueKey)
		live := found
		if liveKey != "" {
			raw, ok := lookupPath(m, liveKey)
			b, isBool := raw.(bool)
			live = ok && isBool && b
		}
		return Derived{Value: value, Live: live}
	}
}

// lookupPath walks a dotted path through nested string-keyed maps.
func lookupPath(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = m
	for _, part := range parts {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
