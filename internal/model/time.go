package model

import "time"

// formatTime renders a timestamp for the wire format. RFC3339Nano keeps the
// fractional seconds GitLab reports, so a snapshot round-trips losslessly.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// formatTimePtr renders an optional timestamp, returning nil for the zero
// pointer so the field is omitted from the wire format.
func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// parseTime parses a wire-format timestamp. time.RFC3339 accepts fractional
// seconds, so it covers both plain and nano renderings.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseTimePtr parses an optional wire-format timestamp.
func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
