package internal

import (
	"fmt"
	"strings"
)

// fragment is a piece of SQL text with its bind arguments. Builders emit ?
// placeholders in textual order regardless of dialect; finalizeSQL rewrites
// them to $n for dollar-placeholder engines once the full statement is
// assembled. Generated text never contains a literal '?' outside a
// placeholder position.
type fragment struct {
	SQL  string
	Args []any
}

func lit(sql string) fragment {
	return fragment{SQL: sql}
}

// bind emits a single placeholder for v.
func bind(v any) fragment {
	return fragment{SQL: "?", Args: []any{v}}
}

// concat joins fragments with sep, merging argument lists in text order.
func concat(sep string, parts ...fragment) fragment {
	texts := make([]string, 0, len(parts))
	var args []any
	for _, p := range parts {
		texts = append(texts, p.SQL)
		args = append(args, p.Args...)
	}
	return fragment{SQL: strings.Join(texts, sep), Args: args}
}

// fragf is Sprintf over fragments: %s verbs consume parts in order and their
// argument lists are merged in text order.
func fragf(format string, parts ...fragment) fragment {
	texts := make([]any, 0, len(parts))
	var args []any
	for _, p := range parts {
		texts = append(texts, p.SQL)
		args = append(args, p.Args...)
	}
	return fragment{SQL: fmt.Sprintf(format, texts...), Args: args}
}

// finalizeSQL renders the fragment for the target dialect.
func finalizeSQL(f fragment, d Dialect) (string, []any) {
	if !d.PlaceholderDollar() {
		return f.SQL, f.Args
	}
	var b strings.Builder
	b.Grow(len(f.SQL) + len(f.Args)*2)
	n := 0
	for i := 0; i < len(f.SQL); i++ {
		if f.SQL[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(f.SQL[i])
	}
	return b.String(), f.Args
}
