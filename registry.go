package prism

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CubeRegistry stores cube definitions. Cubes are registered during startup
// and the registry is then frozen; after Freeze all lookups are wait-free
// reads. Join targets resolve at freeze time so cubes may reference each
// other in any registration order, including cycles.
type CubeRegistry struct {
	mu     sync.Mutex
	cubes  map[string]*Cube
	order  []string
	frozen bool
}

// NewCubeRegistry creates an empty registry.
func NewCubeRegistry() *CubeRegistry {
	return &CubeRegistry{cubes: make(map[string]*Cube)}
}

// Register validates and stores a cube definition. It fails once the
// registry is frozen.
func (r *CubeRegistry) Register(cube *Cube) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return NewRegistryError(ErrKindDuplicateCube,
			"registry is frozen; cubes must be registered during startup")
	}
	if cube == nil || cube.Name == "" {
		return NewRegistryError(ErrKindDuplicateCube, "cube name must not be empty")
	}
	if _, exists := r.cubes[cube.Name]; exists {
		return NewRegistryError(ErrKindDuplicateCube,
			fmt.Sprintf("cube '%s' is already registered", cube.Name))
	}
	if err := validateCube(cube); err != nil {
		return err
	}

	r.cubes[cube.Name] = cube
	r.order = append(r.order, cube.Name)
	return nil
}

// Freeze resolves all join targets and locks the registry for reads.
// It fails with registry/unresolved-join when a join names a cube that was
// never registered.
func (r *CubeRegistry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil
	}
	for _, name := range r.order {
		cube := r.cubes[name]
		for joinName, join := range cube.Joins {
			if _, ok := r.cubes[join.TargetCube]; !ok {
				return NewRegistryError(ErrKindUnresolvedJoin,
					fmt.Sprintf("cube '%s' join '%s' targets unknown cube '%s'",
						name, joinName, join.TargetCube))
			}
			if len(join.Columns) == 0 {
				return NewRegistryError(ErrKindUnresolvedJoin,
					fmt.Sprintf("cube '%s' join '%s' declares no column pairs", name, joinName))
			}
		}
	}
	r.frozen = true
	return nil
}

// Frozen reports whether Freeze has completed.
func (r *CubeRegistry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Lookup returns the cube with the given case-sensitive name.
func (r *CubeRegistry) Lookup(name string) (*Cube, bool) {
	cube, ok := r.cubes[name]
	return cube, ok
}

// Names returns the registered cube names in registration order.
func (r *CubeRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SplitMember splits a cube-qualified name into (cube, field). The second
// return is empty when the name carries no dot.
func SplitMember(member string) (string, string) {
	idx := strings.Index(member, ".")
	if idx < 0 {
		return member, ""
	}
	return member[:idx], member[idx+1:]
}

// ResolveDimension resolves a cube-qualified dimension name.
func (r *CubeRegistry) ResolveDimension(member string) (*Cube, Dimension, error) {
	cubeName, field := SplitMember(member)
	cube, ok := r.Lookup(cubeName)
	if !ok {
		return nil, Dimension{}, NewUnknownFieldError(member)
	}
	dim, ok := cube.Dimensions[field]
	if !ok {
		return nil, Dimension{}, NewUnknownFieldError(member)
	}
	return cube, dim, nil
}

// ResolveMeasure resolves a cube-qualified measure name.
func (r *CubeRegistry) ResolveMeasure(member string) (*Cube, Measure, error) {
	cubeName, field := SplitMember(member)
	cube, ok := r.Lookup(cubeName)
	if !ok {
		return nil, Measure{}, NewUnknownFieldError(member)
	}
	m, ok := cube.Measures[field]
	if !ok {
		return nil, Measure{}, NewUnknownFieldError(member)
	}
	return cube, m, nil
}

// ResolveField resolves a cube-qualified name to either a dimension or a
// measure, reporting which.
func (r *CubeRegistry) ResolveField(member string) (*Cube, bool, error) {
	cubeName, field := SplitMember(member)
	cube, ok := r.Lookup(cubeName)
	if !ok {
		return nil, false, NewUnknownFieldError(member)
	}
	if _, ok := cube.Measures[field]; ok {
		return cube, true, nil
	}
	if _, ok := cube.Dimensions[field]; ok {
		return cube, false, nil
	}
	return nil, false, NewUnknownFieldError(member)
}

func validateCube(cube *Cube) error {
	seen := make(map[string]string)
	primaryKeys := 0

	dimNames := sortedKeys(cube.Dimensions)
	for _, name := range dimNames {
		dim := cube.Dimensions[name]
		if prev, dup := seen[name]; dup {
			return NewRegistryError(ErrKindDuplicateField,
				fmt.Sprintf("cube '%s': field '%s' declared as both %s and dimension",
					cube.Name, name, prev))
		}
		seen[name] = "dimension"
		if dim.PrimaryKey {
			primaryKeys++
		}
		if dim.Type == "" {
			return NewRegistryError(ErrKindDuplicateField,
				fmt.Sprintf("cube '%s': dimension '%s' has no type", cube.Name, name))
		}
	}
	if primaryKeys > 1 {
		return NewRegistryError(ErrKindDuplicateField,
			fmt.Sprintf("cube '%s': more than one primary-key dimension", cube.Name))
	}

	for _, name := range sortedKeys(cube.Measures) {
		m := cube.Measures[name]
		if prev, dup := seen[name]; dup {
			return NewRegistryError(ErrKindDuplicateField,
				fmt.Sprintf("cube '%s': field '%s' declared as both %s and measure",
					cube.Name, name, prev))
		}
		seen[name] = "measure"
		if m.Type == "" {
			return NewRegistryError(ErrKindDuplicateField,
				fmt.Sprintf("cube '%s': measure '%s' has no type", cube.Name, name))
		}
		if m.Type == MeasureWindow && m.Window == nil {
			return NewRegistryError(ErrKindDuplicateField,
				fmt.Sprintf("cube '%s': window measure '%s' has no window spec", cube.Name, name))
		}
	}

	for _, hname := range sortedKeys(cube.Hierarchies) {
		h := cube.Hierarchies[hname]
		for _, level := range h.Levels {
			if _, ok := cube.Dimensions[level]; !ok {
				return NewRegistryError(ErrKindDuplicateField,
					fmt.Sprintf("cube '%s': hierarchy '%s' references unknown dimension '%s'",
						cube.Name, hname, level))
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
