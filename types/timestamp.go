package types

import (
	"fmt"
	"regexp"
	"time"
)

// Submission dates arrive as UTC ISO-8601 with fractional seconds and a Z
// suffix, e.g. 2024-02-01T14:05:09.123Z.
var submissionDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{1,9}Z$`)

// ParseSubmissionDate parses the trigger's submission_date field.
func ParseSubmissionDate(s string) (time.Time, error) {
	if !submissionDatePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("submission date %q is not ISO-8601 UTC with fractional seconds", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid submission date %q: %w", s, err)
	}
	return t, nil
}
