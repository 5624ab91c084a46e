package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TypedDataField is one member of an EIP-712 struct type
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedDataPayload is a signing request in the shape wallets take it:
// domain, struct types and the values to sign. The engine does not
// interpret it beyond the nonce/deadline/expiry fields.
type TypedDataPayload struct {
	Domain map[string]any              `json:"domain"`
	Types  map[string][]TypedDataField `json:"types"`
	Values map[string]any              `json:"values"`
}

// ParseTypedData decodes a typed-data payload. Servers send it either as a
// JSON object or as a JSON string holding the object; both are accepted.
// Numbers are kept as decimal strings so uint256 values survive intact.
func ParseTypedData(raw json.RawMessage) (*TypedDataPayload, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("typed data payload is empty")
	}

	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("failed to unquote typed data: %w", err)
		}
		data = []byte(inner)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload TypedDataPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode typed data: %w", err)
	}

	if len(payload.Types) == 0 {
		return nil, fmt.Errorf("typed data has no types")
	}
	if payload.Values == nil {
		return nil, fmt.Errorf("typed data has no values")
	}

	payload.Domain = normalizeMap(payload.Domain)
	payload.Values = normalizeMap(payload.Values)

	return &payload, nil
}

// Field returns a value rendered as a string, the way it goes into a signed envelope
func (p *TypedDataPayload) Field(name string) (string, bool) {
	v, ok := p.Values[name]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case bool:
		s = fmt.Sprintf("%t", val)
	default:
		s = fmt.Sprint(val)
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		return val.String()
	case map[string]any:
		return normalizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalizeValue(val[i])
		}
		return out
	default:
		return v
	}
}
