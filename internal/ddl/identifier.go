package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// Glue catalog names: letters, digits and underscores, not starting with a
// digit. Glue stores them lowercased.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxIdentifierLen is Glue's limit for database and table names.
const maxIdentifierLen = 255

// ValidateIdentifier reports whether name can be used unquoted as a Glue
// database or table name. Everything interpolated into DDL passes through
// here first.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("identifier is empty")
	case len(name) > maxIdentifierLen:
		return fmt.Errorf("identifier is %d characters, limit is %d", len(name), maxIdentifierLen)
	case !identifierRe.MatchString(name):
		return fmt.Errorf("identifier %q may only contain letters, digits and underscores and must not start with a digit", name)
	}
	return nil
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// EscapeLiteral doubles every embedded single quote so value can be placed
// between single quotes.
func EscapeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// QuoteLiteral wraps a string value in single quotes, escaping any
// embedded single-quote characters by doubling them.
func QuoteLiteral(value string) string {
	return "'" + EscapeLiteral(value) + "'"
}
