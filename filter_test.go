package prism

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterUnmarshalCondition(t *testing.T) {
	var f Filter
	require.NoError(t, json.Unmarshal(
		[]byte(`{"member":"Employees.squad","operator":"equals","values":["core"]}`), &f))

	assert.False(t, f.IsGroup())
	assert.Equal(t, "Employees.squad", f.Member)
	assert.Equal(t, OpEquals, f.Operator)
	assert.Equal(t, []any{"core"}, f.Values)
}

func TestFilterUnmarshalGroupForms(t *testing.T) {
	// Canonical {and: [...]} form.
	var f Filter
	require.NoError(t, json.Unmarshal(
		[]byte(`{"and":[{"member":"a.b","operator":"set"},{"member":"a.c","operator":"notSet"}]}`), &f))
	require.True(t, f.IsGroup())
	assert.Equal(t, LogicAnd, f.Logic)
	require.Len(t, f.Filters, 2)
	assert.Equal(t, "a.b", f.Filters[0].Member)

	require.NoError(t, json.Unmarshal(
		[]byte(`{"or":[{"member":"a.b","operator":"set"}]}`), &f))
	assert.Equal(t, LogicOr, f.Logic)

	// Client style {type, filters}, case-insensitive.
	require.NoError(t, json.Unmarshal(
		[]byte(`{"type":"OR","filters":[{"member":"a.b","operator":"set"}]}`), &f))
	assert.Equal(t, LogicOr, f.Logic)
	require.Len(t, f.Filters, 1)

	err := json.Unmarshal([]byte(`{"type":"xor","filters":[]}`), &f)
	require.Error(t, err)
}

func TestFilterUnmarshalNestedGroups(t *testing.T) {
	var f Filter
	require.NoError(t, json.Unmarshal([]byte(`{
		"or": [
			{"member":"a.b","operator":"equals","values":[1]},
			{"type":"and","filters":[
				{"member":"a.c","operator":"gt","values":[5]},
				{"member":"a.d","operator":"notSet"}
			]}
		]
	}`), &f))

	require.True(t, f.IsGroup())
	require.Len(t, f.Filters, 2)
	inner := f.Filters[1]
	require.True(t, inner.IsGroup())
	assert.Equal(t, LogicAnd, inner.Logic)
	assert.Equal(t, []string{"a.b", "a.c", "a.d"}, f.Members())
}

func TestFilterMarshalCanonical(t *testing.T) {
	data, err := json.Marshal(Where("a.b", OpEquals, "x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"member":"a.b","operator":"equals","values":["x"]}`, string(data))

	data, err = json.Marshal(Or(Where("a.b", OpSet)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"or":[{"member":"a.b","operator":"set"}]}`, string(data))

	// Groups round-trip through the canonical form.
	var back Filter
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, LogicOr, back.Logic)

	data, err = json.Marshal(And())
	require.NoError(t, err)
	assert.JSONEq(t, `{"and":[]}`, string(data))
}

func TestFilterBuilderHelpers(t *testing.T) {
	f := Where("a.b", OpGt, 5)
	assert.Equal(t, []any{5}, f.Values)
	assert.False(t, f.IsGroup())

	g := And(f, Or(Where("a.c", OpSet)))
	assert.True(t, g.IsGroup())
	assert.Equal(t, []string{"a.b", "a.c"}, g.Members())

	empty := Filter{}
	assert.Nil(t, empty.Members())
}
