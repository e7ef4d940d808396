package filter

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-manager/internal/domain"
)

const selectPrefix = `SELECT * FROM "log_manager_data"."processed_logs" WHERE `

var utcOpts = Options{Timezone: "UTC"}

func requireCompileError(t *testing.T, err error, code domain.CompileErrorCode) {
	t.Helper()
	require.Error(t, err)
	var ce *domain.CompileError
	require.True(t, errors.As(err, &ce), "expected CompileError, got %T", err)
	assert.Equal(t, code, ce.Code)
}

func TestCompile_IncludeAndExcludeUseDifferentConnectives(t *testing.T) {
	t.Parallel()

	include, err := Compile([]domain.Clause{
		domain.CategoricalClause{Key: domain.FilterKeyApplication, Values: []string{"a", "b"}},
	}, utcOpts)
	require.NoError(t, err)
	assert.Equal(t, selectPrefix+"((application = 'a') OR (application = 'b'))", include.SQL)
	assert.Equal(t, "processed_logs", include.Table)

	exclude, err := Compile([]domain.Clause{
		domain.CategoricalClause{Key: domain.FilterKeyApplication, Values: []string{"a", "b"}, Exclude: true},
	}, utcOpts)
	require.NoError(t, err)
	assert.Equal(t, selectPrefix+"((application != 'a') AND (application != 'b'))", exclude.SQL)
}

func TestCompile_EscapesSingleQuotes(t *testing.T) {
	t.Parallel()

	q, err := Compile([]domain.Clause{
		domain.CategoricalClause{Key: domain.FilterKeyUsername, Values: []string{"O'Brien"}},
	}, utcOpts)
	require.NoError(t, err)
	assert.Equal(t, selectPrefix+"((username = 'O''Brien'))", q.SQL)
}

func TestCompile_EndpointMembership(t *testing.T) {
	t.Parallel()

	q, err := Compile([]domain.Clause{
		domain.CategoricalClause{Key: domain.FilterKeyEndpoint, Values: []string{"https://a/x", "b'c"}},
	}, utcOpts)
	require.NoError(t, err)
	assert.Equal(t, selectPrefix+"(run_remote_endpoint IN ('https://a/x', 'b''c'))", q.SQL)

	q, err = Compile([]domain.Clause{
		domain.CategoricalClause{Key: domain.FilterKeyEndpoint, Values: []string{"x"}, Exclude: true},
	}, utcOpts)
	require.NoError(t, err)
	assert.Equal(t, selectPrefix+"(run_remote_endpoint NOT IN ('x'))", q.SQL)
}

func TestCompile_DuplicateValuesCollapse(t *testing.T) {
	q, err := Compile([]domain.Clause{
		domain.CategoricalClause{Key: domain.FilterKeyEvent, Values: []string{"login", "login"}},
	}, utcOpts)
	require.NoError(t, err)
	assert.Equal(t, selectPrefix+"((event = 'login'))", q.SQL)
}

func TestCompile_TimeRange(t *testing.T) {
	t.Parallel()

	t.Run("start_date_only", func(t *testing.T) {
		q, err := Compile([]domain.Clause{domain.TimeRangeClause{StartTime: "2024-01-15"}}, utcOpts)
		require.NoError(t, err)
		assert.Equal(t, selectPrefix+"(timestamp >= 1705276800 AND year >= '2024' AND month >= '01' AND day >= '15')", q.SQL)
		assert.NotContains(t, q.SQL, "hour")
	})

	t.Run("start_with_time", func(t *testing.T) {
		q, err := Compile([]domain.Clause{domain.TimeRangeClause{StartTime: "2024-01-15 09:00"}}, utcOpts)
		require.NoError(t, err)
		assert.Contains(t, q.SQL, "hour >= '09'")
	})

	t.Run("end_only", func(t *testing.T) {
		q, err := Compile([]domain.Clause{domain.TimeRangeClause{StartTime: "junk", EndTime: "2024-01-16"}}, utcOpts)
		require.NoError(t, err)
		assert.Equal(t, selectPrefix+"(timestamp <= 1705363200 AND year <= '2024' AND month <= '01' AND day <= '16')", q.SQL)
	})

	t.Run("both", func(t *testing.T) {
		q, err := Compile([]domain.Clause{domain.TimeRangeClause{StartTime: "2024-01-15", EndTime: "2024-01-16"}}, utcOpts)
		require.NoError(t, err)
		assert.Equal(t, selectPrefix+
			"((timestamp >= 1705276800 AND year >= '2024' AND month >= '01' AND day >= '15') AND "+
			"(timestamp <= 1705363200 AND year <= '2024' AND month <= '01' AND day <= '16'))", q.SQL)
	})
}

func TestCompile_JoinsClausesInOrder(t *testing.T) {
	t.Parallel()

	q, err := Compile([]domain.Clause{
		domain.CategoricalClause{Key: domain.FilterKeySession, Values: []string{"s1"}},
		domain.CategoricalClause{Key: domain.FilterKeyActivity, Values: nil},
		domain.TimeRangeClause{StartTime: "2024-01-15"},
		domain.CategoricalClause{Key: domain.FilterKeyEvent, Values: []string{"x"}, Exclude: true},
	}, utcOpts)
	require.NoError(t, err)
	assert.Equal(t, selectPrefix+
		"((session = 's1')) AND "+
		"(timestamp >= 1705276800 AND year >= '2024' AND month >= '01' AND day >= '15') AND "+
		"((event != 'x'))", q.SQL)
}

func TestCompile_OneFragmentPerNonEmptyClause(t *testing.T) {
	t.Parallel()

	keys := []domain.FilterKey{
		domain.FilterKeySession, domain.FilterKeyUsername, domain.FilterKeyApplication,
		domain.FilterKeyActivity, domain.FilterKeyEvent,
	}
	for n := 1; n <= len(keys); n++ {
		var clauses []domain.Clause
		for i := 0; i < n; i++ {
			clauses = append(clauses,
				domain.CategoricalClause{Key: keys[i], Values: []string{fmt.Sprintf("v%d", i)}, Exclude: i%2 == 1},
				domain.CategoricalClause{Key: keys[i]}, // empty, skipped
			)
		}
		q, err := Compile(clauses, utcOpts)
		require.NoError(t, err)
		where := strings.TrimPrefix(q.SQL, selectPrefix)
		assert.Len(t, strings.Split(where, ") AND ("), n, "n=%d sql=%s", n, q.SQL)
		assert.True(t, strings.HasPrefix(where, "(") && strings.HasSuffix(where, ")"))
	}
}

func TestCompile_NoValidFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		clauses []domain.Clause
	}{
		{name: "nil_list", clauses: nil},
		{name: "all_empty", clauses: []domain.Clause{
			domain.CategoricalClause{Key: domain.FilterKeyApplication},
			domain.CategoricalClause{Key: domain.FilterKeyEndpoint, Values: []string{}, Exclude: true},
		}},
		{name: "unparseable_times", clauses: []domain.Clause{
			domain.TimeRangeClause{StartTime: "soon", EndTime: "later"},
			domain.TimeRangeClause{},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.clauses, utcOpts)
			requireCompileError(t, err, domain.CompileNoValidFilters)
		})
	}
}

func TestCompile_MalformedInput(t *testing.T) {
	t.Parallel()

	ok := []domain.Clause{domain.CategoricalClause{Key: domain.FilterKeyEvent, Values: []string{"x"}}}
	tests := []struct {
		name    string
		clauses []domain.Clause
		opts    Options
	}{
		{name: "unknown_timezone", clauses: ok, opts: Options{Timezone: "Mars/Olympus"}},
		{name: "injected_table", clauses: ok, opts: Options{Table: `logs" --`}},
		{name: "injected_database", clauses: ok, opts: Options{Database: "a;b"}},
		{name: "nil_clause", clauses: []domain.Clause{nil}},
		{name: "time_key_as_values", clauses: []domain.Clause{
			domain.CategoricalClause{Key: domain.FilterKeyTime, Values: []string{"x"}},
		}},
		{name: "key_outside_allowlist", clauses: []domain.Clause{
			domain.CategoricalClause{Key: domain.FilterKey("1=1 OR password"), Values: []string{"x"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.clauses, tt.opts)
			requireCompileError(t, err, domain.CompileMalformedInput)
		})
	}
}

func TestCompile_Defaults(t *testing.T) {
	q, err := Compile([]domain.Clause{
		domain.CategoricalClause{Key: domain.FilterKeyEvent, Values: []string{"x"}},
	}, Options{Table: "archived_logs", Database: "other_db"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "other_db"."archived_logs" WHERE ((event = 'x'))`, q.SQL)
	assert.Equal(t, "archived_logs", q.Table)
}
