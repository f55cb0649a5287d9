package recordstore

import (
	"fmt"
	"strings"
)

// Formula helpers build the store's string filter expressions. Values are
// always escaped; field names are wrapped in braces unless they are
// function calls like RECORD_ID().

// Field wraps a field name for use in a formula.
func Field(name string) string {
	if strings.HasSuffix(name, ")") {
		return name
	}
	return "{" + name + "}"
}

// EscapeValue escapes a string literal for inclusion in a formula.
func EscapeValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Eq builds an equality test.
func Eq(field, value string) string {
	return fmt.Sprintf("%s=%s", Field(field), EscapeValue(value))
}

// Ne builds an inequality test.
func Ne(field, value string) string {
	return fmt.Sprintf("%s!=%s", Field(field), EscapeValue(value))
}

// NotEmpty tests that a field has a value.
func NotEmpty(field string) string {
	return fmt.Sprintf("%s!=''", Field(field))
}

// And combines terms conjunctively.
func And(terms ...string) string {
	if len(terms) == 1 {
		return terms[0]
	}
	return "AND(" + strings.Join(terms, ",") + ")"
}

// Or combines terms disjunctively.
func Or(terms ...string) string {
	if len(terms) == 1 {
		return terms[0]
	}
	return "OR(" + strings.Join(terms, ",") + ")"
}
