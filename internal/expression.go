package internal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lychee-technology/prism"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// cubeAliasToken is the placeholder cube authors use in expression templates
// to reference their own base relation alias.
const cubeAliasToken = "{CUBE}"

// resolveExpression turns a declared field reference into a SQL fragment
// bound to the cube's alias. A bare column name becomes a quoted, qualified
// reference; a template has its {CUBE} tokens replaced with the quoted alias
// and its ? placeholders bound to the declared Args. Request-supplied text
// never reaches this path, so the emitted SQL derives only from cube
// definitions.
func resolveExpression(d Dialect, cubeName string, e prism.Expression) (fragment, error) {
	if e.SQL == "" {
		return fragment{}, fmt.Errorf("empty sql reference on cube '%s'", cubeName)
	}
	alias := d.QuoteIdent(cubeName)

	if identPattern.MatchString(e.SQL) {
		if len(e.Args) != 0 {
			return fragment{}, fmt.Errorf(
				"column reference '%s' on cube '%s' cannot carry args", e.SQL, cubeName)
		}
		return lit(alias + "." + d.QuoteIdent(e.SQL)), nil
	}

	sql := strings.ReplaceAll(e.SQL, cubeAliasToken, alias)
	placeholders := strings.Count(sql, "?")
	if placeholders != len(e.Args) {
		return fragment{}, fmt.Errorf(
			"expression on cube '%s' declares %d placeholders but %d args",
			cubeName, placeholders, len(e.Args))
	}
	return fragment{SQL: sql, Args: append([]any(nil), e.Args...)}, nil
}

// resolveBaseQuery invokes the cube's base-query builder and resolves its
// relation and security predicate. The relation becomes `<from> AS <alias>`;
// a simple table name is quoted, anything else (a subselect) is wrapped.
func resolveBaseQuery(d Dialect, cube *prism.Cube, qctx *prism.QueryContext) (from fragment, where fragment, err error) {
	base := prism.BaseQuery{From: defaultTableName(cube.Name)}
	if cube.Base != nil {
		base = cube.Base(qctx)
	}
	if base.From == "" {
		return fragment{}, fragment{}, fmt.Errorf("cube '%s' base query has no relation", cube.Name)
	}

	alias := d.QuoteIdent(cube.Name)
	rel := base.From
	if identPattern.MatchString(rel) {
		rel = d.QuoteIdent(rel)
	} else {
		rel = "(" + rel + ")"
	}
	from = lit(rel + " AS " + alias)

	if base.Where.SQL != "" {
		where, err = resolveExpression(d, cube.Name, base.Where)
		if err != nil {
			return fragment{}, fragment{}, err
		}
	}
	return from, where, nil
}

// defaultTableName derives a relation name for cubes with no base-query
// builder: lower snake case of the cube name.
func defaultTableName(cubeName string) string {
	var b strings.Builder
	for i, r := range cubeName {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
