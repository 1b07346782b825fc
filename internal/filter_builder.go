package internal

import (
	"fmt"
	"time"

	"github.com/lychee-technology/prism"
)

// fieldRef is a resolved filter member: its SQL fragment plus enough type
// information to pick comparison semantics.
type fieldRef struct {
	Expr      fragment
	Type      prism.DimensionType
	IsMeasure bool
}

// memberResolver resolves a cube-qualified member for filtering. The planner
// supplies one that resolves dimensions against their cube alias and
// measures against their aggregate expression (for HAVING).
type memberResolver func(member string) (fieldRef, error)

// filterBuilder translates a filter tree into SQL predicates. Every
// user-supplied value becomes a bound parameter.
type filterBuilder struct {
	d       Dialect
	resolve memberResolver
	now     time.Time
}

// Build translates one filter node. Empty groups collapse to an empty
// fragment (neutral, skipped by the caller); single-member groups collapse
// to the member itself.
func (b *filterBuilder) Build(f prism.Filter) (fragment, error) {
	if f.IsGroup() {
		return b.buildGroup(f)
	}
	return b.buildCondition(f)
}

func (b *filterBuilder) buildGroup(f prism.Filter) (fragment, error) {
	var joiner string
	switch f.Logic {
	case prism.LogicAnd:
		joiner = " AND "
	case prism.LogicOr:
		joiner = " OR "
	default:
		return fragment{}, fmt.Errorf("unknown filter logic: %s", f.Logic)
	}

	var children []fragment
	for i := range f.Filters {
		child, err := b.Build(f.Filters[i])
		if err != nil {
			return fragment{}, err
		}
		if child.SQL == "" {
			continue
		}
		children = append(children, fragf("(%s)", child))
	}

	switch len(children) {
	case 0:
		return fragment{}, nil
	case 1:
		return children[0], nil
	default:
		return fragf("(%s)", concat(joiner, children...)), nil
	}
}

func (b *filterBuilder) buildCondition(f prism.Filter) (fragment, error) {
	ref, err := b.resolve(f.Member)
	if err != nil {
		return fragment{}, err
	}

	switch f.Operator {
	case prism.OpEquals:
		return b.buildEquality(ref, f.Values, false)
	case prism.OpNotEquals:
		return b.buildEquality(ref, f.Values, true)

	case prism.OpContains:
		return b.buildLike(ref, f.Values, "%", "%", false)
	case prism.OpNotContains:
		return b.buildLike(ref, f.Values, "%", "%", true)
	case prism.OpStartsWith:
		return b.buildLike(ref, f.Values, "", "%", false)
	case prism.OpEndsWith:
		return b.buildLike(ref, f.Values, "%", "", false)

	case prism.OpGt:
		return b.buildComparison(ref, f.Values, ">")
	case prism.OpGte:
		return b.buildComparison(ref, f.Values, ">=")
	case prism.OpLt:
		return b.buildComparison(ref, f.Values, "<")
	case prism.OpLte:
		return b.buildComparison(ref, f.Values, "<=")

	case prism.OpSet:
		return fragf("%s IS NOT NULL", ref.Expr), nil
	case prism.OpNotSet:
		return fragf("%s IS NULL", ref.Expr), nil

	case prism.OpInDateRange:
		r, err := b.resolveRange(f)
		if err != nil {
			return fragment{}, err
		}
		return rangePredicate(b.d, ref.Expr, r), nil
	case prism.OpBeforeDate:
		t, err := b.singleDate(f, true)
		if err != nil {
			return fragment{}, err
		}
		return fragf("%s < %s", ref.Expr, bind(b.d.TimeValue(t))), nil
	case prism.OpAfterDate:
		t, err := b.singleDate(f, false)
		if err != nil {
			return fragment{}, err
		}
		return fragf("%s > %s", ref.Expr, bind(b.d.TimeValue(t))), nil

	default:
		return fragment{}, fmt.Errorf("unsupported filter operator '%s'", f.Operator)
	}
}

func (b *filterBuilder) buildEquality(ref fieldRef, values []any, negate bool) (fragment, error) {
	if len(values) == 0 {
		return fragment{}, fmt.Errorf("filter needs at least one value")
	}
	if len(values) == 1 {
		if values[0] == nil {
			if negate {
				return fragf("%s IS NOT NULL", ref.Expr), nil
			}
			return fragf("%s IS NULL", ref.Expr), nil
		}
		op := "="
		if negate {
			op = "!="
		}
		return fragf("%s "+op+" %s", ref.Expr, b.bindTyped(ref, values[0])), nil
	}

	placeholders := make([]fragment, len(values))
	for i, v := range values {
		placeholders[i] = b.bindTyped(ref, v)
	}
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return fragf("%s "+op+" (%s)", ref.Expr, concat(", ", placeholders...)), nil
}

func (b *filterBuilder) buildLike(ref fieldRef, values []any, prefix, suffix string, negate bool) (fragment, error) {
	if len(values) == 0 {
		return fragment{}, fmt.Errorf("filter needs at least one value")
	}
	joiner := " OR "
	if negate {
		joiner = " AND "
	}
	parts := make([]fragment, len(values))
	for i, v := range values {
		pattern := bind(prefix + fmt.Sprintf("%v", v) + suffix)
		parts[i] = fragment{
			SQL:  b.d.LikeCI(ref.Expr.SQL, pattern.SQL, negate),
			Args: append(append([]any(nil), ref.Expr.Args...), pattern.Args...),
		}
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return fragf("(%s)", concat(joiner, parts...)), nil
}

func (b *filterBuilder) buildComparison(ref fieldRef, values []any, op string) (fragment, error) {
	if len(values) != 1 {
		return fragment{}, fmt.Errorf("comparison filter needs exactly one value")
	}
	return fragf("%s "+op+" %s", ref.Expr, b.bindTyped(ref, values[0])), nil
}

// bindTyped binds a value, converting temporal strings for time fields into
// the dialect's preferred representation.
func (b *filterBuilder) bindTyped(ref fieldRef, v any) fragment {
	if ref.Type == prism.DimensionTypeTime {
		if t, _, err := parseDateValue(v, b.now.Location()); err == nil {
			return bind(b.d.TimeValue(t))
		}
	}
	return bind(v)
}

func (b *filterBuilder) resolveRange(f prism.Filter) (resolvedRange, error) {
	switch len(f.Values) {
	case 1:
		return parseDateRange(f.Values[0], b.now)
	case 2:
		return parseDateRange(f.Values, b.now)
	default:
		return resolvedRange{}, fmt.Errorf("inDateRange expects a named range or a [start, end] pair")
	}
}

// singleDate resolves a beforeDate/afterDate bound. Date-only values snap to
// the start of the day for beforeDate and the end of the day for afterDate,
// keeping the named day itself outside the matched set.
func (b *filterBuilder) singleDate(f prism.Filter, startOfDayBound bool) (time.Time, error) {
	if len(f.Values) != 1 {
		return time.Time{}, fmt.Errorf("%s expects exactly one date", f.Operator)
	}
	t, dateOnly, err := parseDateValue(f.Values[0], b.now.Location())
	if err != nil {
		return time.Time{}, err
	}
	if dateOnly && !startOfDayBound {
		return endOfDay(t), nil
	}
	return t, nil
}
