package prism

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// FilterOperator enumerates the supported condition operators.
type FilterOperator string

const (
	OpEquals      FilterOperator = "equals"
	OpNotEquals   FilterOperator = "notEquals"
	OpContains    FilterOperator = "contains"
	OpNotContains FilterOperator = "notContains"
	OpStartsWith  FilterOperator = "startsWith"
	OpEndsWith    FilterOperator = "endsWith"
	OpGt          FilterOperator = "gt"
	OpGte         FilterOperator = "gte"
	OpLt          FilterOperator = "lt"
	OpLte         FilterOperator = "lte"
	OpSet         FilterOperator = "set"
	OpNotSet      FilterOperator = "notSet"
	OpInDateRange FilterOperator = "inDateRange"
	OpBeforeDate  FilterOperator = "beforeDate"
	OpAfterDate   FilterOperator = "afterDate"
)

// LogicOperator combines filter groups.
type LogicOperator string

const (
	LogicAnd LogicOperator = "and"
	LogicOr  LogicOperator = "or"
)

// Filter is one node of a filter tree: either a condition on a
// cube-qualified member, or a logical group of child filters. Exactly one
// of (Member) and (Logic, Filters) is set on a well-formed node.
type Filter struct {
	Member   string         `json:"member,omitempty"`
	Operator FilterOperator `json:"operator,omitempty"`
	Values   []any          `json:"values,omitempty"`

	Logic   LogicOperator `json:"-"`
	Filters []Filter      `json:"-"`
}

// IsGroup reports whether the node is a logical group.
func (f *Filter) IsGroup() bool {
	return f.Logic != ""
}

// And groups filters under AND.
func And(filters ...Filter) Filter {
	return Filter{Logic: LogicAnd, Filters: filters}
}

// Or groups filters under OR.
func Or(filters ...Filter) Filter {
	return Filter{Logic: LogicOr, Filters: filters}
}

// Where builds a single condition filter.
func Where(member string, op FilterOperator, values ...any) Filter {
	return Filter{Member: member, Operator: op, Values: values}
}

// filterWire is the union of the accepted wire shapes:
//
//	{"member": ..., "operator": ..., "values": [...]}
//	{"and": [...]} / {"or": [...]}
//	{"type": "and"|"or", "filters": [...]}   (client style)
type filterWire struct {
	Member   string         `json:"member"`
	Operator FilterOperator `json:"operator"`
	Values   []any          `json:"values"`

	And []Filter `json:"and"`
	Or  []Filter `json:"or"`

	Type    string   `json:"type"`
	Filters []Filter `json:"filters"`
}

// UnmarshalJSON accepts both group forms described in the wire format and
// normalizes them into the canonical (Logic, Filters) representation.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var w filterWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.And != nil:
		*f = Filter{Logic: LogicAnd, Filters: w.And}
	case w.Or != nil:
		*f = Filter{Logic: LogicOr, Filters: w.Or}
	case w.Type != "":
		logic := LogicOperator(strings.ToLower(w.Type))
		if logic != LogicAnd && logic != LogicOr {
			return fmt.Errorf("invalid filter group type: %q", w.Type)
		}
		*f = Filter{Logic: logic, Filters: w.Filters}
	default:
		*f = Filter{Member: w.Member, Operator: w.Operator, Values: w.Values}
	}
	return nil
}

// MarshalJSON emits the canonical representation ({and|or: [...]} for
// groups).
func (f Filter) MarshalJSON() ([]byte, error) {
	if f.IsGroup() {
		children := f.Filters
		if children == nil {
			children = []Filter{}
		}
		return json.Marshal(map[string][]Filter{string(f.Logic): children})
	}
	type condition struct {
		Member   string         `json:"member"`
		Operator FilterOperator `json:"operator"`
		Values   []any          `json:"values,omitempty"`
	}
	return json.Marshal(condition{Member: f.Member, Operator: f.Operator, Values: f.Values})
}

// Members returns every cube-qualified member referenced in the tree.
func (f *Filter) Members() []string {
	if !f.IsGroup() {
		if f.Member == "" {
			return nil
		}
		return []string{f.Member}
	}
	var out []string
	for i := range f.Filters {
		out = append(out, f.Filters[i].Members()...)
	}
	return out
}
