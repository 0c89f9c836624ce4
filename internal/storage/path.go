package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath produces the object key for an exported session history,
// partitioned by export date so buckets stay browsable.
func BuildExportPath(sessionID string, exportedAt time.Time) (string, error) {
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}

	ts := exportedAt.UTC()
	return path.Join(
		"sessions",
		sessionID,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("turns-%d.parquet", ts.UnixMilli()),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
