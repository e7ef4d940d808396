package domain

import "fmt"

// PartitionKey identifies one hourly partition of the archive. Each field is a
// zero-padded decimal string: Year has 4 digits, the rest 2.
type PartitionKey struct {
	Year  string
	Month string
	Day   string
	Hour  string
}

// String returns the canonical PARTITION clause body, e.g.
// (year = '2024', month = '03', day = '07', hour = '14').
// It doubles as the dedup key within a scan pass.
func (k PartitionKey) String() string {
	return fmt.Sprintf("(year = '%s', month = '%s', day = '%s', hour = '%s')", k.Year, k.Month, k.Day, k.Hour)
}

// Path returns the storage prefix holding the partition's objects:
// <prefix>/YYYY/MM/DD/HH/.
func (k PartitionKey) Path(prefix string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s/", prefix, k.Year, k.Month, k.Day, k.Hour)
}
