package types

import (
	"encoding/json"
	"fmt"
)

type taggedEnvelope struct {
	Type string `json:"type"`
}

func readTag(data []byte) (taggedEnvelope, error) {
	var env taggedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return taggedEnvelope{}, fmt.Errorf("types: decoding tagged union discriminant: %w", err)
	}
	return env, nil
}

func unmarshalInto(data []byte, target any) error {
	return json.Unmarshal(data, target)
}

func marshalTagged(tag string, payload any) ([]byte, error) {
	merged := map[string]any{"type": tag}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func errUnknownTag(typeName, tag string) error {
	return fmt.Errorf("types: unknown %s discriminant %q", typeName, tag)
}
