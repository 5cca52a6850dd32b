package types

// Submission outcomes stored in StatusRecord.Status.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "Email Sent Successfully"
	DeliveryFailed DeliveryStatus = "Mail delivery Failed"
)

// NotificationOutcome is what the notifier reports back after trying to
// email the student. BodyText is filled in even when delivery failed.
type NotificationOutcome struct {
	DeliveryStatus DeliveryStatus
	ErrorDetail    *string
	BodyText       string
	BodyHTML       string
	MessageID      string
}

// StatusRecord is the audit row written once per invocation, keyed by
// submission ID. A later attempt with the same ID replaces it.
type StatusRecord struct {
	ID             string         `json:"id" dynamodbav:"Id" db:"id"`
	Recipient      string         `json:"recipient" dynamodbav:"recipient" db:"recipient"`
	Attempts       int            `json:"attempts" dynamodbav:"attempts" db:"attempts"`
	Status         string         `json:"status" dynamodbav:"status" db:"status"` // success, fail
	DeliveryStatus DeliveryStatus `json:"delivery_status" dynamodbav:"delivery_status" db:"delivery_status"`
	ErrorMessage   *string        `json:"error_message" dynamodbav:"error_message" db:"error_message"`
	BodyText       string         `json:"body_text" dynamodbav:"body_text" db:"body_text"`
	StorageKey     string         `json:"storage_path" dynamodbav:"storage_path" db:"storage_path"`
	AssignmentID   string         `json:"assignment_id" dynamodbav:"assignment_id" db:"assignment_id"`
	RecordedAt     int64          `json:"recorded_at" dynamodbav:"recorded_at" db:"recorded_at"` // Unix timestamp
}
