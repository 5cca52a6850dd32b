// Package mail emails students the outcome of their submission through
// Amazon SES.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/smithy-go"

	"submitflow/backend/types"
)

const charset = "UTF-8"

// SESAPI is the part of the SES client the notifier uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Notice is what the student is told about their submission.
type Notice struct {
	Succeeded  bool
	StorageKey string
	Reason     string
}

type Notifier struct {
	client    SESAPI
	sender    string
	signature string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewNotifier(client SESAPI, sender, signature string, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		client:    client,
		sender:    sender,
		signature: signature,
		timeout:   timeout,
		logger:    logger,
	}
}

// Subject is the subject line for every outcome email about sub.
func Subject(sub types.SubmissionEvent) string {
	return "Submission Status for " + sub.AssignmentName
}

// Render builds the plain-text and HTML bodies for sub. It fails only when
// the submission date cannot be parsed.
func (n *Notifier) Render(sub types.SubmissionEvent, notice Notice) (string, string, error) {
	submittedAt, err := types.ParseSubmissionDate(sub.SubmissionDate)
	if err != nil {
		return "", "", err
	}

	text, html, err := render(notice.Succeeded, emailData{
		Name:          sub.FullName(),
		Assignment:    sub.AssignmentName,
		SubmissionURL: sub.SubmissionURL,
		StorageKey:    notice.StorageKey,
		SubmittedAt:   submittedAt.Format(HumanDateLayout),
		Attempts:      sub.Attempts,
		Reason:        notice.Reason,
		Signature:     n.signature,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to render email: %w", err)
	}
	return text, html, nil
}

// Send emails the student. Delivery problems are reported in the returned
// outcome, never as an error; the error return is reserved for a submission
// date that cannot be parsed.
func (n *Notifier) Send(ctx context.Context, sub types.SubmissionEvent, notice Notice) (types.NotificationOutcome, error) {
	text, html, err := n.Render(sub, notice)
	if err != nil {
		return types.NotificationOutcome{}, err
	}

	outcome := types.NotificationOutcome{BodyText: text, BodyHTML: html}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	resp, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{sub.Email},
		},
		Message: &sestypes.Message{
			Body: &sestypes.Body{
				Html: &sestypes.Content{Charset: aws.String(charset), Data: aws.String(html)},
				Text: &sestypes.Content{Charset: aws.String(charset), Data: aws.String(text)},
			},
			Subject: &sestypes.Content{Charset: aws.String(charset), Data: aws.String(Subject(sub))},
		},
		ReplyToAddresses: []string{n.sender},
		Source:           aws.String(n.sender),
	})
	if err != nil {
		detail := "Email failed to send: " + err.Error()
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			detail = "Email failed to send: " + apiErr.ErrorMessage()
		}
		n.logger.Error("email delivery failed", "recipient", sub.Email, "error", err)
		outcome.DeliveryStatus = types.DeliveryFailed
		outcome.ErrorDetail = &detail
		return outcome, nil
	}

	outcome.DeliveryStatus = types.DeliverySent
	outcome.MessageID = aws.ToString(resp.MessageId)
	n.logger.Info("email sent", "recipient", sub.Email, "message_id", outcome.MessageID)
	return outcome, nil
}
