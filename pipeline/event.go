package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"submitflow/backend/types"

	"github.com/aws/aws-lambda-go/events"
)

// ParseError means the trigger payload could not be turned into a
// SubmissionEvent. It aborts the invocation.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid submission event: %v", e.Err)
	}
	return fmt.Sprintf("invalid submission event: %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errMissing = errors.New("required field is missing")

// message is the JSON published to the topic for every submission.
type message struct {
	Submission *struct {
		ID             json.RawMessage `json:"id"`
		SubmissionURL  *string         `json:"submission_url"`
		SubmissionDate *string         `json:"submission_date"`
	} `json:"submission"`
	Assignment *struct {
		ID   json.RawMessage `json:"id"`
		Name *string         `json:"name"`
	} `json:"assignment"`
	Account *struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Email     *string `json:"email"`
	} `json:"account"`
	Attempts *int `json:"attempts"`
}

// ParseSNSEvent extracts the submission from the first record of an SNS
// notification.
func ParseSNSEvent(event events.SNSEvent) (types.SubmissionEvent, error) {
	if len(event.Records) == 0 {
		return types.SubmissionEvent{}, &ParseError{Field: "Records", Err: errMissing}
	}
	return ParseMessage([]byte(event.Records[0].SNS.Message))
}

// ParseMessage parses and validates a submission message.
func ParseMessage(data []byte) (types.SubmissionEvent, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return types.SubmissionEvent{}, &ParseError{Err: err}
	}

	if msg.Submission == nil {
		return types.SubmissionEvent{}, &ParseError{Field: "submission", Err: errMissing}
	}
	if msg.Assignment == nil {
		return types.SubmissionEvent{}, &ParseError{Field: "assignment", Err: errMissing}
	}
	if msg.Account == nil {
		return types.SubmissionEvent{}, &ParseError{Field: "account", Err: errMissing}
	}

	var sub types.SubmissionEvent
	var err error
	if sub.SubmissionID, err = identifier("submission.id", msg.Submission.ID); err != nil {
		return types.SubmissionEvent{}, err
	}
	if sub.AssignmentID, err = identifier("assignment.id", msg.Assignment.ID); err != nil {
		return types.SubmissionEvent{}, err
	}

	fields := []struct {
		name  string
		value *string
		dst   *string
	}{
		{"submission.submission_url", msg.Submission.SubmissionURL, &sub.SubmissionURL},
		{"submission.submission_date", msg.Submission.SubmissionDate, &sub.SubmissionDate},
		{"assignment.name", msg.Assignment.Name, &sub.AssignmentName},
		{"account.first_name", msg.Account.FirstName, &sub.FirstName},
		{"account.last_name", msg.Account.LastName, &sub.LastName},
		{"account.email", msg.Account.Email, &sub.Email},
	}
	for _, f := range fields {
		if f.value == nil || strings.TrimSpace(*f.value) == "" {
			return types.SubmissionEvent{}, &ParseError{Field: f.name, Err: errMissing}
		}
		*f.dst = *f.value
	}

	if msg.Attempts == nil {
		return types.SubmissionEvent{}, &ParseError{Field: "attempts", Err: errMissing}
	}
	if *msg.Attempts < 1 {
		return types.SubmissionEvent{}, &ParseError{Field: "attempts", Err: fmt.Errorf("must be positive, got %d", *msg.Attempts)}
	}
	sub.Attempts = *msg.Attempts

	if sub.SubmittedAt, err = types.ParseSubmissionDate(sub.SubmissionDate); err != nil {
		return types.SubmissionEvent{}, &ParseError{Field: "submission.submission_date", Err: err}
	}

	return sub, nil
}

// identifier accepts IDs published either as JSON strings or numbers.
func identifier(field string, raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", &ParseError{Field: field, Err: errMissing}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", &ParseError{Field: field, Err: errMissing}
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", &ParseError{Field: field, Err: errors.New("must be a string or number")}
	}
	return n.String(), nil
}
