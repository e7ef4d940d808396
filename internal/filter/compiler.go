// Package filter compiles user-facing filter lists into SQL predicates over
// the partitioned log tables.
package filter

import (
	"fmt"
	"strings"
	"time"

	"log-manager/internal/ddl"
	"log-manager/internal/domain"
)

// Defaults used when Options leaves a field empty.
const (
	DefaultDatabase = "log_manager_data"
	DefaultTable    = "processed_logs"
	DefaultTimezone = "America/New_York"
)

// Options controls where the compiled query reads from and how time strings
// are interpreted.
type Options struct {
	Database string
	Table    string
	Timezone string // IANA name
}

func (o Options) withDefaults() Options {
	if o.Database == "" {
		o.Database = DefaultDatabase
	}
	if o.Table == "" {
		o.Table = DefaultTable
	}
	if o.Timezone == "" {
		o.Timezone = DefaultTimezone
	}
	return o
}

// Compile renders clauses into a single SELECT with one parenthesised
// fragment per effective clause, joined with AND. Clauses without values and
// time ranges without a parseable endpoint are skipped; if nothing remains the
// result is a NoValidFilters error rather than an unconstrained scan.
func Compile(clauses []domain.Clause, opts Options) (*domain.CompiledQuery, error) {
	opts = opts.withDefaults()

	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, domain.ErrMalformedInput("unknown timezone %q", opts.Timezone)
	}
	if err := ddl.ValidateIdentifier(opts.Table); err != nil {
		return nil, domain.ErrMalformedInput("invalid table %q: %s", opts.Table, err.Error())
	}
	if err := ddl.ValidateIdentifier(opts.Database); err != nil {
		return nil, domain.ErrMalformedInput("invalid database %q: %s", opts.Database, err.Error())
	}

	fragments := make([]string, 0, len(clauses))
	for i, c := range clauses {
		frag, ok, err := renderClause(c, loc)
		if err != nil {
			return nil, domain.ErrMalformedInput("filter %d: %s", i, err.Error())
		}
		if ok {
			fragments = append(fragments, "("+frag+")")
		}
	}
	if len(fragments) == 0 {
		return nil, domain.ErrNoValidFilters()
	}

	sql, err := ddl.SelectWhere(opts.Database, opts.Table, strings.Join(fragments, " AND "))
	if err != nil {
		return nil, domain.ErrMalformedInput("%s", err.Error())
	}
	return &domain.CompiledQuery{SQL: sql, Table: opts.Table}, nil
}

func renderClause(c domain.Clause, loc *time.Location) (string, bool, error) {
	switch c := c.(type) {
	case domain.CategoricalClause:
		return renderCategorical(c)
	case *domain.CategoricalClause:
		if c == nil {
			return "", false, fmt.Errorf("nil clause")
		}
		return renderCategorical(*c)
	case domain.TimeRangeClause:
		frag, ok := RenderRange(ParseTime(c.StartTime, loc), ParseTime(c.EndTime, loc))
		return frag, ok, nil
	case *domain.TimeRangeClause:
		if c == nil {
			return "", false, fmt.Errorf("nil clause")
		}
		frag, ok := RenderRange(ParseTime(c.StartTime, loc), ParseTime(c.EndTime, loc))
		return frag, ok, nil
	default:
		return "", false, fmt.Errorf("unsupported clause %T", c)
	}
}

func renderCategorical(c domain.CategoricalClause) (string, bool, error) {
	if !c.Key.IsCategorical() {
		return "", false, fmt.Errorf("key %q cannot be used as a value filter", c.Key)
	}
	values := uniqueValues(c.Values)
	if len(values) == 0 {
		return "", false, nil
	}

	if c.Key.IsMembership() {
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = ddl.QuoteLiteral(v)
		}
		op := "IN"
		if c.Exclude {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", c.Key, op, strings.Join(quoted, ", ")), true, nil
	}

	// Inclusion matches any value; exclusion must match none.
	cmp, join := "=", " OR "
	if c.Exclude {
		cmp, join = "!=", " AND "
	}
	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = fmt.Sprintf("(%s %s %s)", c.Key, cmp, ddl.QuoteLiteral(v))
	}
	return strings.Join(terms, join), true, nil
}

func uniqueValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
