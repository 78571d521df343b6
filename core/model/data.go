package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/davidahmann/opsgraph/core/jcs"
)

// Data is the free-form attribute bag attached to nodes, edges and projects.
type Data map[string]any

func (d Data) Clone() Data {
	if d == nil {
		return Data{}
	}
	cloned := make(Data, len(d))
	for key, value := range d {
		cloned[key] = value
	}
	return cloned
}

// EncodeData returns the canonical JSON text stored for a data bag. A nil bag
// encodes as an empty object.
func EncodeData(d Data) (string, error) {
	if d == nil {
		d = Data{}
	}
	encoded, err := jcs.Marshal(map[string]any(d))
	if err != nil {
		return "", fmt.Errorf("encode data bag: %w", err)
	}
	return string(encoded), nil
}

// DecodeData parses stored JSON text into a data bag. Anything other than a
// JSON object is rejected.
func DecodeData(raw string) (Data, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("decode data bag: empty value")
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("decode data bag: %w", err)
	}
	if decoded == nil {
		return nil, fmt.Errorf("decode data bag: value is not an object")
	}
	return Data(decoded), nil
}

// ParseDataFlag decodes a user supplied JSON object, treating blank input as an empty bag.
func ParseDataFlag(raw string) (Data, error) {
	if strings.TrimSpace(raw) == "" {
		return Data{}, nil
	}
	return DecodeData(raw)
}
