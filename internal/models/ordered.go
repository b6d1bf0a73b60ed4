package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Pair is a single key/value entry of an OrderedMap
type Pair struct {
	Key   string
	Value string
}

// OrderedMap is a string map that remembers insertion order.
// Upstream season, episode and quality listings are ordered chronologically
// (or worst to best for qualities) and that order is significant.
type OrderedMap struct {
	pairs []Pair
	index map[string]int
}

// NewOrderedMap builds an OrderedMap from pairs, later duplicates overwrite earlier values
func NewOrderedMap(pairs ...Pair) *OrderedMap {
	m := &OrderedMap{}
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// Set inserts or replaces a value, keeping the original position on replace
func (m *OrderedMap) Set(key, value string) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.pairs[i].Value = value
		return
	}
	m.index[key] = len(m.pairs)
	m.pairs = append(m.pairs, Pair{Key: key, Value: value})
}

// Get returns the value stored under key
func (m *OrderedMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[key]
	if !ok {
		return "", false
	}
	return m.pairs[i].Value, true
}

// IndexOf returns the position of key or -1
func (m *OrderedMap) IndexOf(key string) int {
	if m == nil {
		return -1
	}
	if i, ok := m.index[key]; ok {
		return i
	}
	return -1
}

// Len returns the number of entries
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// At returns the entry at position i
func (m *OrderedMap) At(i int) Pair {
	return m.pairs[i]
}

// Last returns the most recently inserted entry
func (m *OrderedMap) Last() (Pair, bool) {
	if m.Len() == 0 {
		return Pair{}, false
	}
	return m.pairs[len(m.pairs)-1], true
}

// Keys returns the keys in insertion order
func (m *OrderedMap) Keys() []string {
	keys := make([]string, 0, m.Len())
	for _, p := range m.Pairs() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Pairs returns a copy of the entries in insertion order
func (m *OrderedMap) Pairs() []Pair {
	if m == nil {
		return nil
	}
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// UnmarshalJSON decodes a JSON object preserving key order.
// Non-string values are kept as their raw JSON text.
func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	*m = OrderedMap{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("ordered map: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("ordered map: expected string key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("ordered map: value for %q: %w", key, err)
		}

		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
		m.Set(key, value)
	}

	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the map as a JSON object in insertion order
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(p.Key)
		v, _ := json.Marshal(p.Value)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
