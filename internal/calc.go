package internal

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/lychee-technology/prism"
)

// Calculated measures are authored as arithmetic templates over sibling
// measures, e.g. "{activeCount} / NULLIF({count}, 0) * 100". The template is
// parsed into a small AST; the planner re-emits it against the outer SELECT
// aliases of the aggregation stage. Only whitelisted functions are accepted.

type calcNode interface{ calcNode() }

type calcRef struct{ Name string }

type calcNumber struct{ Text string }

type calcBinary struct {
	Op          string
	Left, Right calcNode
}

type calcUnary struct{ Operand calcNode }

type calcCall struct {
	Name string
	Args []calcNode
}

func (calcRef) calcNode()    {}
func (calcNumber) calcNode() {}
func (calcBinary) calcNode() {}
func (calcUnary) calcNode()  {}
func (calcCall) calcNode()   {}

var calcFunctions = map[string]struct{ minArgs, maxArgs int }{
	"NULLIF":   {2, 2},
	"COALESCE": {2, 8},
	"ABS":      {1, 1},
	"ROUND":    {1, 2},
	"FLOOR":    {1, 1},
	"CEIL":     {1, 1},
	"GREATEST": {2, 8},
	"LEAST":    {2, 8},
}

// parseCalcExpression parses a calculated-measure template. The factory runs
// ValidateCalculatedMeasures over the whole registry at engine assembly, so a
// bad template fails construction instead of the first query that names it;
// the planner re-parses per query because an Engine can be built directly.
func parseCalcExpression(template string) (calcNode, error) {
	p := &calcParser{input: template}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected trailing input at offset %d in %q", p.pos, template)
	}
	return node, nil
}

// calcRefs lists the sibling measures a parsed template references, sorted
// and deduplicated.
func calcRefs(node calcNode) []string {
	seen := map[string]bool{}
	var walk func(calcNode)
	walk = func(n calcNode) {
		switch t := n.(type) {
		case calcRef:
			seen[t.Name] = true
		case calcBinary:
			walk(t.Left)
			walk(t.Right)
		case calcUnary:
			walk(t.Operand)
		case calcCall:
			for _, a := range t.Args {
				walk(a)
			}
		}
	}
	walk(node)
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// emitCalc renders a parsed template to SQL, resolving each {ref} through
// the supplied callback.
func emitCalc(node calcNode, resolve func(name string) (string, error)) (string, error) {
	switch t := node.(type) {
	case calcRef:
		return resolve(t.Name)
	case calcNumber:
		return t.Text, nil
	case calcUnary:
		inner, err := emitCalc(t.Operand, resolve)
		if err != nil {
			return "", err
		}
		return "-" + inner, nil
	case calcBinary:
		left, err := emitCalc(t.Left, resolve)
		if err != nil {
			return "", err
		}
		right, err := emitCalc(t.Right, resolve)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + t.Op + " " + right + ")", nil
	case calcCall:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			s, err := emitCalc(a, resolve)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return t.Name + "(" + strings.Join(parts, ", ") + ")", nil
	}
	return "", fmt.Errorf("unknown calc node %T", node)
}

// detectCalcCycle finds a dependency cycle among calculated measures; deps
// maps each calculated measure to the calculated siblings it references.
// Returns the members of the first cycle found, or nil.
func detectCalcCycle(deps map[string][]string) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			start := 0
			for i, s := range stack {
				if s == name {
					start = i
					break
				}
			}
			cycle = append([]string(nil), stack[start:]...)
			return true
		case done:
			return false
		}
		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range deps[name] {
			if visit(dep) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return false
	}

	names := make([]string, 0, len(deps))
	for n := range deps {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if visit(n) {
			return cycle
		}
	}
	return nil
}

// ValidateCalculatedMeasures parses every calculated-measure template in the
// registry and rejects unknown references, references to window measures, and
// reference cycles. Window measures are excluded because they are computed
// over the finished aggregation stage, after calculated columns.
func ValidateCalculatedMeasures(reg *prism.CubeRegistry) error {
	for _, cubeName := range reg.Names() {
		cube, ok := reg.Lookup(cubeName)
		if !ok {
			continue
		}

		names := make([]string, 0, len(cube.Measures))
		for name := range cube.Measures {
			names = append(names, name)
		}
		sort.Strings(names)

		deps := map[string][]string{}
		for _, name := range names {
			m := cube.Measures[name]
			if m.Type != prism.MeasureCalculated {
				continue
			}
			node, err := parseCalcExpression(m.SQL.SQL)
			if err != nil {
				return prism.NewValidationError(prism.ErrKindCalcUnresolved,
					fmt.Sprintf("calculated measure '%s.%s': %v", cubeName, name, err))
			}
			var calcDeps []string
			for _, ref := range calcRefs(node) {
				sibling, ok := cube.Measures[ref]
				if !ok {
					return prism.NewValidationError(prism.ErrKindCalcUnresolved,
						fmt.Sprintf("calculated measure '%s.%s' references unknown measure '%s'",
							cubeName, name, ref))
				}
				switch sibling.Type {
				case prism.MeasureWindow:
					return prism.NewValidationError(prism.ErrKindCalcUnresolved,
						fmt.Sprintf("calculated measure '%s.%s' cannot reference window measure '%s'",
							cubeName, name, ref))
				case prism.MeasureCalculated:
					calcDeps = append(calcDeps, ref)
				}
			}
			deps[name] = calcDeps
		}
		if cycle := detectCalcCycle(deps); cycle != nil {
			return prism.NewValidationError(prism.ErrKindCalcCycle,
				fmt.Sprintf("calculated measures on cube '%s' reference each other: %s",
					cubeName, strings.Join(cycle, " -> ")))
		}
	}
	return nil
}

type calcParser struct {
	input string
	pos   int
}

func (p *calcParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *calcParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *calcParser) parseExpr() (calcNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		c := p.peek()
		if c != '+' && c != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = calcBinary{Op: string(c), Left: left, Right: right}
	}
}

func (p *calcParser) parseTerm() (calcNode, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		c := p.peek()
		if c != '*' && c != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = calcBinary{Op: string(c), Left: left, Right: right}
	}
}

func (p *calcParser) parseFactor() (calcNode, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '-':
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return calcUnary{Operand: inner}, nil

	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return inner, nil

	case c == '{':
		p.pos++
		name := p.readIdent()
		if name == "" {
			return nil, fmt.Errorf("empty measure reference at offset %d", p.pos)
		}
		if err := p.expect('}'); err != nil {
			return nil, err
		}
		return calcRef{Name: name}, nil

	case c >= '0' && c <= '9':
		return p.parseNumber()

	case isIdentStart(c):
		return p.parseCall()

	default:
		return nil, fmt.Errorf("unexpected character %q at offset %d", c, p.pos)
	}
}

func (p *calcParser) parseNumber() (calcNode, error) {
	start := p.pos
	seenDot := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			p.pos++
			continue
		}
		break
	}
	return calcNumber{Text: p.input[start:p.pos]}, nil
}

func (p *calcParser) parseCall() (calcNode, error) {
	name := strings.ToUpper(p.readIdent())
	spec, ok := calcFunctions[name]
	if !ok {
		return nil, fmt.Errorf("function '%s' is not allowed in calculated measures", name)
	}
	p.skipSpace()
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var args []calcNode
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	if len(args) < spec.minArgs || len(args) > spec.maxArgs {
		return nil, fmt.Errorf("%s takes %d..%d arguments, got %d",
			name, spec.minArgs, spec.maxArgs, len(args))
	}
	return calcCall{Name: name, Args: args}, nil
}

func (p *calcParser) readIdent() string {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *calcParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
