// Package payload models the JSON objects exchanged on the hydroplant bus.
package payload

import (
	"encoding/json"
	"reflect"
)

// Keys the transport layer attaches that must never be re-published.
var transportKeys = []string{"time", "status", "topic"}

// Payload is one bus message body: string keys over dynamic JSON values.
type Payload map[string]any

// Decode parses raw JSON into a Payload. Anything that is not a JSON
// object (including invalid JSON) decodes to the empty object so a bad
// message never halts a handler.
func Decode(raw []byte) Payload {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil || p == nil {
		return Payload{}
	}
	return p
}

// Clone returns a shallow copy.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Value returns the "value" field and whether it was present.
func (p Payload) Value() (any, bool) {
	v, ok := p["value"]
	return v, ok
}

// Sanitized returns a copy with the transport-only keys removed.
func (p Payload) Sanitized() Payload {
	out := p.Clone()
	for _, k := range transportKeys {
		delete(out, k)
	}
	return out
}

// Encode serializes the sanitized payload for publishing.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p.Sanitized())
}

// Canonical returns a deterministic rendering of (topic, payload) used
// for step deduplication. json.Marshal sorts map keys, which makes the
// encoding stable for equal payloads.
func Canonical(topic string, p Payload) string {
	raw, err := json.Marshal(p)
	if err != nil {
		raw = []byte("{}")
	}
	return topic + "\n" + string(raw)
}

// ValuesEqual compares two payload values, treating all numeric types as
// equal when they represent the same number. JSON decoding yields float64
// while locally built commands carry ints; both must compare equal.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
