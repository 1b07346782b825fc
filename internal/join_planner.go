package internal

import (
	"fmt"
	"sort"

	"github.com/lychee-technology/prism"
)

// joinEdge is one declared join viewed from a traversal direction. Reversed
// edges flip the relationship: walking a belongsTo backwards is a hasMany
// from the walker's perspective, and vice versa.
type joinEdge struct {
	From     string
	To       string
	Join     prism.Join
	Reversed bool
}

func (e joinEdge) relationship() prism.Relationship {
	if !e.Reversed {
		return e.Join.Relationship
	}
	switch e.Join.Relationship {
	case prism.BelongsTo:
		return prism.HasMany
	case prism.HasMany:
		return prism.BelongsTo
	default:
		return prism.HasOne
	}
}

// columns returns the equality pairs oriented From→To.
func (e joinEdge) columns() []prism.JoinColumn {
	if !e.Reversed {
		return e.Join.Columns
	}
	out := make([]prism.JoinColumn, len(e.Join.Columns))
	for i, c := range e.Join.Columns {
		out[i] = prism.JoinColumn{SourceColumn: c.TargetColumn, TargetColumn: c.SourceColumn}
	}
	return out
}

// plannedJoin is one emitted join clause.
type plannedJoin struct {
	Cube         string // cube being joined in
	From         string // already-included cube it attaches to
	Relationship prism.Relationship
	Columns      []prism.JoinColumn // From-side → Cube-side
	Left         bool               // LEFT JOIN when set, INNER otherwise
}

// joinPlan is the spanning tree connecting a query's referenced cubes.
type joinPlan struct {
	Root     string
	Cubes    []string // root first, then joined cubes in emission order
	Joins    []plannedJoin
	Warnings []prism.QueryWarning
}

// planJoins chooses a connected spanning tree over the referenced cubes.
// Paths may pass through unreferenced intermediate cubes. projected marks
// cubes contributing projected fields; projectedDims marks cubes
// contributing projected dimensions; pivotHint marks cubes named in the
// query's cubes list.
func planJoins(
	reg *prism.CubeRegistry,
	root string,
	required []string,
	projected map[string]bool,
	projectedDims map[string]bool,
	pivotHint map[string]bool,
) (*joinPlan, error) {
	adjacency := buildAdjacency(reg)

	plan := &joinPlan{Root: root, Cubes: []string{root}}
	included := map[string]bool{root: true}

	for _, target := range required {
		if included[target] {
			continue
		}
		path, ambiguous := shortestPath(adjacency, root, target)
		if path == nil {
			missing := append([]string{root}, target)
			return nil, prism.NewUnconnectedCubesError(missing)
		}
		if ambiguous {
			plan.Warnings = append(plan.Warnings, prism.QueryWarning{
				Code: prism.WarnAmbiguousJoin,
				Message: fmt.Sprintf(
					"multiple equally short join paths from '%s' to '%s'; picked deterministically", root, target),
			})
		}
		for _, edge := range path {
			if included[edge.To] {
				continue
			}
			included[edge.To] = true
			plan.Cubes = append(plan.Cubes, edge.To)
			plan.Joins = append(plan.Joins, buildPlannedJoin(edge, projected, pivotHint))
		}
	}

	// Fan-out notice: a hasMany side that contributes no dimension forces
	// the caller to deduplicate aggregates.
	for _, j := range plan.Joins {
		if j.Relationship == prism.HasMany && j.Left && !projectedDims[j.Cube] {
			plan.Warnings = append(plan.Warnings, prism.QueryWarning{
				Code: prism.WarnHasManyFanOut,
				Message: fmt.Sprintf(
					"hasMany join to '%s' without a projected dimension from it may inflate aggregates", j.Cube),
			})
		}
	}
	return plan, nil
}

func buildPlannedJoin(edge joinEdge, projected, pivotHint map[string]bool) plannedJoin {
	rel := edge.relationship()
	left := rel == prism.HasMany
	// Pure pivot inclusion of a hasMany side keeps INNER semantics so
	// parent cardinality stays correct.
	if left && !projected[edge.To] && pivotHint[edge.To] {
		left = false
	}
	return plannedJoin{
		Cube:         edge.To,
		From:         edge.From,
		Relationship: rel,
		Columns:      edge.columns(),
		Left:         left,
	}
}

func buildAdjacency(reg *prism.CubeRegistry) map[string][]joinEdge {
	adjacency := make(map[string][]joinEdge)
	for _, name := range reg.Names() {
		cube, _ := reg.Lookup(name)
		for _, joinName := range sortedJoinNames(cube.Joins) {
			join := cube.Joins[joinName]
			adjacency[name] = append(adjacency[name], joinEdge{
				From: name, To: join.TargetCube, Join: join,
			})
			adjacency[join.TargetCube] = append(adjacency[join.TargetCube], joinEdge{
				From: join.TargetCube, To: name, Join: join, Reversed: true,
			})
		}
	}
	return adjacency
}

func sortedJoinNames(joins map[string]prism.Join) []string {
	names := make([]string, 0, len(joins))
	for n := range joins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// shortestPath runs BFS from root to target. Neighbour expansion prefers
// edges whose preferredFor names the target, then lexicographic order, so
// equal-length choices resolve deterministically. The second return reports
// whether several equally short undirected paths existed without a
// preferredFor hint breaking the tie.
func shortestPath(adjacency map[string][]joinEdge, root, target string) ([]joinEdge, bool) {
	type visit struct {
		parent     string
		parentEdge joinEdge
		depth      int
		routes     int
	}
	visited := map[string]*visit{root: {depth: 0, routes: 1}}
	queue := []string{root}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		cur := visited[current]

		edges := append([]joinEdge(nil), adjacency[current]...)
		sort.SliceStable(edges, func(i, j int) bool {
			pi := prefersTarget(edges[i].Join, target)
			pj := prefersTarget(edges[j].Join, target)
			if pi != pj {
				return pi
			}
			return edges[i].To < edges[j].To
		})

		for _, edge := range edges {
			if prev, seen := visited[edge.To]; seen {
				if prev.depth == cur.depth+1 {
					prev.routes += cur.routes
				}
				continue
			}
			visited[edge.To] = &visit{
				parent:     current,
				parentEdge: edge,
				depth:      cur.depth + 1,
				routes:     cur.routes,
			}
			queue = append(queue, edge.To)
		}
	}

	end, ok := visited[target]
	if !ok {
		return nil, false
	}

	var path []joinEdge
	for name := target; name != root; {
		v := visited[name]
		path = append([]joinEdge{v.parentEdge}, path...)
		name = v.parent
	}
	ambiguous := end.routes > 1 && !pathUsesPreference(path, target)
	return path, ambiguous
}

func prefersTarget(join prism.Join, target string) bool {
	if join.TargetCube == target {
		return true
	}
	for _, name := range join.PreferredFor {
		if name == target {
			return true
		}
	}
	return false
}

func pathUsesPreference(path []joinEdge, target string) bool {
	for _, edge := range path {
		for _, name := range edge.Join.PreferredFor {
			if name == target {
				return true
			}
		}
	}
	return false
}
