package utils

import (
	"fmt"
	"regexp"
	"strings"

	"submitflow/backend/types"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// Slug strips everything but ASCII letters, digits and whitespace, lower-cases
// the rest and turns spaces into underscores.
func Slug(s string) string {
	cleaned := unsafeChars.ReplaceAllString(s, "")
	return strings.ReplaceAll(strings.ToLower(cleaned), " ", "_")
}

// ComputeKey returns the object key a submission is stored under:
//
//	{assignment}/{email}/{first}_{last}_{attempts}.zip
//
// The key depends only on the assignment name, email, first and last name
// and the attempt count, so a redelivered event maps to the same object.
func ComputeKey(sub types.SubmissionEvent) string {
	return fmt.Sprintf("%s/%s/%s_%s_%d.zip",
		Slug(sub.AssignmentName),
		Slug(sub.Email),
		Slug(sub.FirstName),
		Slug(sub.LastName),
		sub.Attempts,
	)
}

// StagingName flattens a storage key into a single file name.
func StagingName(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}
