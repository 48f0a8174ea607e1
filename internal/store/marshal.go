package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeLayout stores timestamps as UTC RFC 3339 with second precision.
const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// marshalOffices stores the office list comma-joined. Office codes are
// validated comma-free before they get here.
func marshalOffices(offices []string) sql.NullString {
	if len(offices) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.Join(offices, ","), Valid: true}
}

func unmarshalOffices(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	return strings.Split(v.String, ",")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
