// Package partition discovers hourly partitions in the log archive and
// registers them with the query catalog.
package partition

import (
	"fmt"
	"strings"
	"time"

	"log-manager/internal/domain"
)

// segment widths for year, month, day, hour.
var segmentWidths = [4]int{4, 2, 2, 2}

// ExtractKey derives the partition key from an object path whose first
// prefixLen bytes are the archive prefix including its trailing slash, e.g.
// "processed-logs/2024/03/07/14/part-0001" with prefixLen 15.
func ExtractKey(objectPath string, prefixLen int) (domain.PartitionKey, error) {
	if prefixLen < 0 || prefixLen > len(objectPath) {
		return domain.PartitionKey{}, domain.ErrMalformedKey(objectPath, "prefix length %d out of range", prefixLen)
	}
	segs := strings.Split(objectPath[prefixLen:], "/")
	if len(segs) < 4 {
		return domain.PartitionKey{}, domain.ErrMalformedKey(objectPath, "want year/month/day/hour, got %d segments", len(segs))
	}

	names := [4]string{"year", "month", "day", "hour"}
	for i := 0; i < 4; i++ {
		if err := checkSegment(segs[i], segmentWidths[i]); err != nil {
			return domain.PartitionKey{}, domain.ErrMalformedKey(objectPath, "%s %s", names[i], err.Error())
		}
	}
	return domain.PartitionKey{Year: segs[0], Month: segs[1], Day: segs[2], Hour: segs[3]}, nil
}

// ExtractKeyWithPrefix is ExtractKey for a prefix given by name. A missing
// trailing slash on prefix is tolerated.
func ExtractKeyWithPrefix(objectPath, prefix string) (domain.PartitionKey, error) {
	prefix = normalizePrefix(prefix)
	if !strings.HasPrefix(objectPath, prefix) {
		return domain.PartitionKey{}, domain.ErrMalformedKey(objectPath, "not under prefix %q", prefix)
	}
	return ExtractKey(objectPath, len(prefix))
}

func checkSegment(s string, width int) error {
	if s == "" {
		return fmt.Errorf("segment is empty")
	}
	if len(s) != width {
		return fmt.Errorf("segment %q must have %d digits", s, width)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("segment %q is not numeric", s)
		}
	}
	return nil
}

// HourPrefix returns the listing prefix for the UTC hour containing t:
// <prefix>/YYYY/MM/DD/HH/.
func HourPrefix(prefix string, t time.Time) string {
	return normalizePrefix(prefix) + t.UTC().Format("2006/01/02/15") + "/"
}

// DayPrefix returns the listing prefix for the UTC day containing t:
// <prefix>/YYYY/MM/DD/.
func DayPrefix(prefix string, t time.Time) string {
	return normalizePrefix(prefix) + t.UTC().Format("2006/01/02") + "/"
}

func normalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
