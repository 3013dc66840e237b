package stores

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParsePatch decodes a JSON patch document ([{op, path, value?, from?}]).
func ParsePatch(data []byte) ([]Operation, error) {
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("stores: parse patch: %w", err)
	}
	return ops, nil
}

// ParsePatchYAML decodes the same document shape written as YAML.
func ParsePatchYAML(data []byte) ([]Operation, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("stores: parse yaml patch: %w", err)
	}
	ops := make([]Operation, 0, len(raw))
	for i, entry := range raw {
		kind, _ := entry["op"].(string)
		path, _ := entry["path"].(string)
		from, _ := entry["from"].(string)
		op, err := decodeOperation(Kind(kind), path, from, entry["value"])
		if err != nil {
			return nil, fmt.Errorf("stores: parse yaml patch entry %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// MarshalPatch encodes ops in the JSON wire form.
func MarshalPatch(ops []Operation) ([]byte, error) {
	if ops == nil {
		ops = []Operation{}
	}
	return json.Marshal(ops)
}
