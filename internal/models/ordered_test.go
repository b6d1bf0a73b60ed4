package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMapKeepsInsertionOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("10", "Серия 10")
	m.Set("2", "Серия 2")
	m.Set("1", "Серия 1")
	m.Set("2", "Серия 2 (replaced)")

	assert.Equal(t, []string{"10", "2", "1"}, m.Keys())
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 1, m.IndexOf("2"))
	assert.Equal(t, -1, m.IndexOf("missing"))

	value, ok := m.Get("2")
	require.True(t, ok)
	assert.Equal(t, "Серия 2 (replaced)", value)

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, Pair{Key: "1", Value: "Серия 1"}, last)
}

func TestOrderedMapNilSafe(t *testing.T) {
	var m *OrderedMap

	assert.Zero(t, m.Len())
	assert.Equal(t, -1, m.IndexOf("1"))
	_, ok := m.Get("1")
	assert.False(t, ok)
	_, ok = m.Last()
	assert.False(t, ok)
	assert.Empty(t, m.Keys())
}

func TestOrderedMapUnmarshalPreservesOrder(t *testing.T) {
	var resp DirectURLs
	body := `{
		"seasons": {"2": "Сезон 2", "1": "Сезон 1"},
		"episodes": {"1": {"3": "Серия 3", "1": "Серия 1"}},
		"urls": {"360p": "https://cdn/360", "1080p Ultra": "https://cdn/1080u", "720p": "https://cdn/720"}
	}`

	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	assert.Equal(t, []string{"2", "1"}, resp.Seasons.Keys())
	assert.Equal(t, []string{"3", "1"}, resp.Episodes["1"].Keys())
	assert.Equal(t, []string{"360p", "1080p Ultra", "720p"}, resp.URLs.Keys())
}

func TestOrderedMapUnmarshalNonStringValues(t *testing.T) {
	var m OrderedMap
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1, "b": null, "c": "x"}`), &m))

	a, _ := m.Get("a")
	b, _ := m.Get("b")
	c, _ := m.Get("c")
	assert.Equal(t, "1", a)
	assert.Empty(t, b)
	assert.Equal(t, "x", c)
}

func TestOrderedMapUnmarshalRejectsArray(t *testing.T) {
	var m OrderedMap
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &m))
}

func TestOrderedMapUnmarshalNull(t *testing.T) {
	var resp DirectURLs
	require.NoError(t, json.Unmarshal([]byte(`{"seasons": null, "urls": {}}`), &resp))

	assert.Zero(t, resp.Seasons.Len())
	assert.Zero(t, resp.URLs.Len())
}

func TestOrderedMapMarshal(t *testing.T) {
	m := NewOrderedMap(Pair{"b", "2"}, Pair{"a", "1"})

	data, err := json.Marshal(m)

	require.NoError(t, err)
	assert.JSONEq(t, `{"b":"2","a":"1"}`, string(data))
	assert.Equal(t, `{"b":"2","a":"1"}`, string(data))
}
