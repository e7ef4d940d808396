// Package ddl builds the SQL statements sent to the query engine: filtered
// selects over the log tables and partition registration.
package ddl

import (
	"fmt"
	"strings"

	"log-manager/internal/domain"
)

// SelectWhere returns SELECT * FROM "<database>"."<table>" WHERE <predicate>.
// The predicate is inserted verbatim; the caller is responsible for it.
func SelectWhere(database, table, predicate string) (string, error) {
	if err := ValidateIdentifier(database); err != nil {
		return "", fmt.Errorf("invalid database name: %w", err)
	}
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if strings.TrimSpace(predicate) == "" {
		return "", fmt.Errorf("predicate is required")
	}
	return fmt.Sprintf("SELECT * FROM %s.%s WHERE %s",
		QuoteIdentifier(database), QuoteIdentifier(table), predicate), nil
}

// AddPartition returns
// ALTER TABLE <table> ADD IF NOT EXISTS PARTITION (year = ..., hour = ...) [LOCATION '<location>'].
// The statement is idempotent on the catalog side.
func AddPartition(table string, key domain.PartitionKey, location string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	for _, part := range []string{key.Year, key.Month, key.Day, key.Hour} {
		if !isDigits(part) {
			return "", fmt.Errorf("invalid partition key %s", key)
		}
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD IF NOT EXISTS PARTITION %s", table, key)
	if location != "" {
		stmt += " LOCATION " + QuoteLiteral(location)
	}
	return stmt, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
