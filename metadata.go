package prism

// DimensionDescriptor describes one dimension for metadata consumers.
type DimensionDescriptor struct {
	Name        string        `json:"name"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Type        DimensionType `json:"type"`
	PrimaryKey  bool          `json:"primaryKey,omitempty"`
}

// MeasureDescriptor describes one measure for metadata consumers.
type MeasureDescriptor struct {
	Name         string        `json:"name"`
	Title        string        `json:"title,omitempty"`
	Description  string        `json:"description,omitempty"`
	Type         MeasureType   `json:"type"`
	Format       MeasureFormat `json:"format,omitempty"`
	DrillMembers []string      `json:"drillMembers,omitempty"`
}

// RelationshipDescriptor describes one declared join for ERD consumers.
type RelationshipDescriptor struct {
	TargetCube   string       `json:"targetCube"`
	Relationship Relationship `json:"relationship"`
	Columns      []JoinColumn `json:"columns"`
}

// HierarchyDescriptor describes one drill-down hierarchy.
type HierarchyDescriptor struct {
	Name   string   `json:"name"`
	Title  string   `json:"title,omitempty"`
	Levels []string `json:"levels"`
}

// CubeDescriptor is the read-only metadata view of a registered cube.
type CubeDescriptor struct {
	Name             string                   `json:"name"`
	Title            string                   `json:"title,omitempty"`
	Description      string                   `json:"description,omitempty"`
	ExampleQuestions []string                 `json:"exampleQuestions,omitempty"`
	EventStream      bool                     `json:"eventStream,omitempty"`
	Dimensions       []DimensionDescriptor    `json:"dimensions"`
	Measures         []MeasureDescriptor      `json:"measures"`
	Hierarchies      []HierarchyDescriptor    `json:"hierarchies,omitempty"`
	Relationships    []RelationshipDescriptor `json:"relationships,omitempty"`
}

// Metadata returns descriptors for every registered cube, in registration
// order, with fields sorted by name for deterministic output.
func (r *CubeRegistry) Metadata() []CubeDescriptor {
	out := make([]CubeDescriptor, 0, len(r.order))
	for _, name := range r.order {
		cube := r.cubes[name]
		desc := CubeDescriptor{
			Name:             cube.Name,
			Title:            cube.Title,
			Description:      cube.Description,
			ExampleQuestions: cube.ExampleQuestions,
			EventStream:      cube.EventStream,
		}
		for _, dname := range sortedKeys(cube.Dimensions) {
			d := cube.Dimensions[dname]
			desc.Dimensions = append(desc.Dimensions, DimensionDescriptor{
				Name:        dname,
				Title:       d.Title,
				Description: d.Description,
				Type:        d.Type,
				PrimaryKey:  d.PrimaryKey,
			})
		}
		for _, mname := range sortedKeys(cube.Measures) {
			m := cube.Measures[mname]
			desc.Measures = append(desc.Measures, MeasureDescriptor{
				Name:         mname,
				Title:        m.Title,
				Description:  m.Description,
				Type:         m.Type,
				Format:       m.Format,
				DrillMembers: m.DrillMembers,
			})
		}
		for _, hname := range sortedKeys(cube.Hierarchies) {
			h := cube.Hierarchies[hname]
			desc.Hierarchies = append(desc.Hierarchies, HierarchyDescriptor{
				Name:   hname,
				Title:  h.Title,
				Levels: h.Levels,
			})
		}
		for _, jname := range sortedKeys(cube.Joins) {
			j := cube.Joins[jname]
			desc.Relationships = append(desc.Relationships, RelationshipDescriptor{
				TargetCube:   j.TargetCube,
				Relationship: j.Relationship,
				Columns:      j.Columns,
			})
		}
		out = append(out, desc)
	}
	return out
}
