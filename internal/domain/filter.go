package domain

import "fmt"

// FilterKey names a column a user filter may constrain.
type FilterKey string

// Allowed filter keys. Anything outside this set is rejected before it can
// reach SQL rendering.
const (
	FilterKeySession     FilterKey = "session"
	FilterKeyUsername    FilterKey = "username"
	FilterKeyApplication FilterKey = "application"
	FilterKeyActivity    FilterKey = "activity"
	FilterKeyEvent       FilterKey = "event"
	FilterKeyEndpoint    FilterKey = "run_remote_endpoint"
	FilterKeyTime        FilterKey = "time"
)

var filterKeys = map[FilterKey]struct{}{
	FilterKeySession:     {},
	FilterKeyUsername:    {},
	FilterKeyApplication: {},
	FilterKeyActivity:    {},
	FilterKeyEvent:       {},
	FilterKeyEndpoint:    {},
	FilterKeyTime:        {},
}

// ParseFilterKey validates s against the allowed filter keys.
func ParseFilterKey(s string) (FilterKey, error) {
	if s == "" {
		return "", ErrMalformedInput("filter is missing a key")
	}
	k := FilterKey(s)
	if _, ok := filterKeys[k]; !ok {
		return "", ErrMalformedInput("unsupported filter key %q", s)
	}
	return k, nil
}

// IsCategorical reports whether the key filters on a set of string values.
func (k FilterKey) IsCategorical() bool {
	_, ok := filterKeys[k]
	return ok && k != FilterKeyTime
}

// IsMembership reports whether the key is rendered as IN / NOT IN.
func (k FilterKey) IsMembership() bool { return k == FilterKeyEndpoint }

// Clause is one entry of an ordered filter list. It is implemented only by
// CategoricalClause and TimeRangeClause.
type Clause interface {
	isClause()
	fmt.Stringer
}

// CategoricalClause includes or excludes rows whose Key column matches any of Values.
type CategoricalClause struct {
	Key     FilterKey
	Values  []string
	Exclude bool
}

func (CategoricalClause) isClause() {}

func (c CategoricalClause) String() string {
	op := "include"
	if c.Exclude {
		op = "exclude"
	}
	return fmt.Sprintf("%s %s %v", op, c.Key, c.Values)
}

// TimeRangeClause bounds the rows by time. Either endpoint may be empty.
// The strings are interpreted in the timezone supplied at compile time.
type TimeRangeClause struct {
	StartTime string
	EndTime   string
}

func (TimeRangeClause) isClause() {}

func (c TimeRangeClause) String() string {
	return fmt.Sprintf("time [%s, %s]", c.StartTime, c.EndTime)
}

// CompiledQuery is the result of compiling a filter list. It is never mutated.
type CompiledQuery struct {
	SQL   string
	Table string
}
