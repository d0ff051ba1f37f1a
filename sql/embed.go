// Package sql provides the embedded bootstrap schema.
package sql

import (
	_ "embed"
	"strings"
)

// CreateSQL is the base schema an operator applies to an empty database.
// Its commands table is what marks a database as initialized.
//
//go:embed create.sql
var CreateSQL string

// Statements splits a script into individual statements so it can be sent
// through drivers that reject multi-statement queries. Line comments are
// dropped; semicolons inside quoted strings do not end a statement.
func Statements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
		quote rune
	)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
			cur.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			cur.WriteRune('\n')
		case r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return stmts
}
