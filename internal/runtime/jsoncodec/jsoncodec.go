// Package jsoncodec centralises JSON encoding on top of sonic.
package jsoncodec

import (
	"fmt"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// UnmarshalMap decodes a JSON object. Empty input yields an empty map.
func UnmarshalMap(data []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(data) == 0 {
		return out, nil
	}
	if err := defaultConfig.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// ToMap renders v through its JSON representation as a generic object.
func ToMap(v any) (map[string]any, error) {
	data, err := defaultConfig.Marshal(v)
	if err != nil {
		return nil, err
	}
	out, err := UnmarshalMap(data)
	if err != nil {
		return nil, fmt.Errorf("value does not encode as a JSON object: %w", err)
	}
	return out, nil
}
