package prism

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCube(name string) *Cube {
	return &Cube{
		Name: name,
		Dimensions: map[string]Dimension{
			"id": {SQL: Expression{SQL: "id"}, Type: DimensionTypeNumber, PrimaryKey: true},
		},
		Measures: map[string]Measure{
			"count": {Type: MeasureCount},
		},
	}
}

func TestRegisterDuplicateCube(t *testing.T) {
	reg := NewCubeRegistry()
	require.NoError(t, reg.Register(validCube("Orders")))

	err := reg.Register(validCube("Orders"))
	require.Error(t, err)
	assert.Equal(t, ErrKindDuplicateCube, ErrorKind(err))
}

func TestRegisterRejectsInvalidCubes(t *testing.T) {
	cases := []struct {
		name string
		cube *Cube
		kind string
	}{
		{"nil cube", nil, ErrKindDuplicateCube},
		{"empty name", &Cube{}, ErrKindDuplicateCube},
		{"dimension without type", &Cube{
			Name:       "C",
			Dimensions: map[string]Dimension{"x": {SQL: Expression{SQL: "x"}}},
		}, ErrKindDuplicateField},
		{"measure without type", &Cube{
			Name:     "C",
			Measures: map[string]Measure{"m": {}},
		}, ErrKindDuplicateField},
		{"field as dimension and measure", &Cube{
			Name: "C",
			Dimensions: map[string]Dimension{
				"total": {SQL: Expression{SQL: "total"}, Type: DimensionTypeNumber},
			},
			Measures: map[string]Measure{"total": {Type: MeasureCount}},
		}, ErrKindDuplicateField},
		{"two primary keys", &Cube{
			Name: "C",
			Dimensions: map[string]Dimension{
				"a": {SQL: Expression{SQL: "a"}, Type: DimensionTypeNumber, PrimaryKey: true},
				"b": {SQL: Expression{SQL: "b"}, Type: DimensionTypeNumber, PrimaryKey: true},
			},
		}, ErrKindDuplicateField},
		{"window measure without spec", &Cube{
			Name:     "C",
			Measures: map[string]Measure{"w": {Type: MeasureWindow}},
		}, ErrKindDuplicateField},
		{"hierarchy over unknown dimension", &Cube{
			Name: "C",
			Dimensions: map[string]Dimension{
				"a": {SQL: Expression{SQL: "a"}, Type: DimensionTypeString},
			},
			Hierarchies: map[string]Hierarchy{
				"h": {Name: "h", Levels: []string{"a", "missing"}},
			},
		}, ErrKindDuplicateField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewCubeRegistry().Register(tc.cube)
			require.Error(t, err)
			assert.Equal(t, tc.kind, ErrorKind(err))
		})
	}
}

func TestFreezeResolvesJoins(t *testing.T) {
	reg := NewCubeRegistry()
	a := validCube("A")
	a.Joins = map[string]Join{
		"b": {TargetCube: "B", Relationship: BelongsTo,
			Columns: []JoinColumn{{SourceColumn: "b_id", TargetColumn: "id"}}},
	}
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(validCube("B")))

	require.NoError(t, reg.Freeze())
	assert.True(t, reg.Frozen())
	// Freeze is idempotent.
	require.NoError(t, reg.Freeze())
}

func TestFreezeRejectsUnresolvedJoin(t *testing.T) {
	reg := NewCubeRegistry()
	a := validCube("A")
	a.Joins = map[string]Join{
		"ghost": {TargetCube: "Ghost", Relationship: BelongsTo,
			Columns: []JoinColumn{{SourceColumn: "x", TargetColumn: "y"}}},
	}
	require.NoError(t, reg.Register(a))

	err := reg.Freeze()
	require.Error(t, err)
	assert.Equal(t, ErrKindUnresolvedJoin, ErrorKind(err))
}

func TestFreezeRejectsJoinWithoutColumns(t *testing.T) {
	reg := NewCubeRegistry()
	a := validCube("A")
	a.Joins = map[string]Join{
		"b": {TargetCube: "B", Relationship: BelongsTo},
	}
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(validCube("B")))

	err := reg.Freeze()
	require.Error(t, err)
	assert.Equal(t, ErrKindUnresolvedJoin, ErrorKind(err))
}

func TestRegisterAfterFreezeFails(t *testing.T) {
	reg := NewCubeRegistry()
	require.NoError(t, reg.Register(validCube("A")))
	require.NoError(t, reg.Freeze())

	err := reg.Register(validCube("B"))
	require.Error(t, err)
}

func TestSplitMember(t *testing.T) {
	cube, field := SplitMember("Employees.count")
	assert.Equal(t, "Employees", cube)
	assert.Equal(t, "count", field)

	cube, field = SplitMember("Employees")
	assert.Equal(t, "Employees", cube)
	assert.Empty(t, field)

	// Only the first dot splits; the rest stays in the field name.
	_, field = SplitMember("A.b.c")
	assert.Equal(t, "b.c", field)
}

func TestResolveHelpers(t *testing.T) {
	reg := NewCubeRegistry()
	require.NoError(t, reg.Register(validCube("Orders")))
	require.NoError(t, reg.Freeze())

	cube, dim, err := reg.ResolveDimension("Orders.id")
	require.NoError(t, err)
	assert.Equal(t, "Orders", cube.Name)
	assert.True(t, dim.PrimaryKey)

	_, _, err = reg.ResolveDimension("Orders.count")
	require.Error(t, err)

	cube, m, err := reg.ResolveMeasure("Orders.count")
	require.NoError(t, err)
	assert.Equal(t, "Orders", cube.Name)
	assert.Equal(t, MeasureCount, m.Type)

	_, isMeasure, err := reg.ResolveField("Orders.count")
	require.NoError(t, err)
	assert.True(t, isMeasure)

	_, isMeasure, err = reg.ResolveField("Orders.id")
	require.NoError(t, err)
	assert.False(t, isMeasure)

	_, _, err = reg.ResolveField("Orders.nothing")
	require.Error(t, err)
	assert.Equal(t, ErrKindUnknownField, ErrorKind(err))

	assert.Equal(t, []string{"Orders"}, reg.Names())
}
