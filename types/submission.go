package types

import "time"

// SubmissionEvent is one student submission as announced by the trigger.
type SubmissionEvent struct {
	SubmissionID   string    `json:"submission_id"`
	SubmissionURL  string    `json:"submission_url"`
	SubmissionDate string    `json:"submission_date"` // as received, ISO-8601 with fractional seconds
	SubmittedAt    time.Time `json:"-"`
	AssignmentID   string    `json:"assignment_id"`
	AssignmentName string    `json:"assignment_name"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Attempts       int       `json:"attempts"`
}

// FullName is how the student is greeted in emails.
func (s SubmissionEvent) FullName() string {
	return s.FirstName + " " + s.LastName
}
