// Package pipeline runs one submission through download, storage, email
// and status recording.
//
// The steps form a linear state machine:
//
//	ReceiveEvent → ParseMetadata → ComputeKey → Fetch → [Upload] → Notify → RecordStatus → Done
//
// Upload only runs after a successful fetch. Parse errors and unparseable
// submission dates abort the invocation; every other failure is reported to
// the student and written to the status record.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"submitflow/backend/db"
	"submitflow/backend/mail"
	"submitflow/backend/storage"
	"submitflow/backend/types"
	"submitflow/backend/utils"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

type State int

const (
	ReceiveEvent State = iota
	ParseMetadata
	ComputeKey
	Fetch
	Upload
	Notify
	RecordStatus
	Done
)

var stateNames = [...]string{"ReceiveEvent", "ParseMetadata", "ComputeKey", "Fetch", "Upload", "Notify", "RecordStatus", "Done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// User-facing reasons for failures that happen after the download.
const (
	reasonStaging       = "Download failed. The submission could not be prepared for storage."
	reasonAlreadyStored = "Upload failed. A submission for this attempt has already been stored."
	reasonUploadFailed  = "Upload failed. The submission could not be stored."
)

type Fetcher interface {
	Fetch(ctx context.Context, url string, dest string) (string, error)
}

type Notifier interface {
	Send(ctx context.Context, sub types.SubmissionEvent, notice mail.Notice) (types.NotificationOutcome, error)
}

// Deps are the collaborators of a pipeline.
type Deps struct {
	Fetcher    Fetcher
	Store      storage.Store
	Notifier   Notifier
	Recorder   db.Recorder
	StagingDir string
	Logger     *slog.Logger
	Now        func() time.Time
}

type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.StagingDir == "" {
		deps.StagingDir = os.TempDir()
	}
	return &Pipeline{deps: deps}
}

// Result describes a completed invocation.
type Result struct {
	Key          string
	Trace        []State
	Failure      string // empty when the submission was stored
	Notification types.NotificationOutcome
	Record       *types.StatusRecord
	RecordErr    error
}

func (r *Result) Succeeded() bool { return r.Failure == "" }

// invocation carries the state of one Run between steps.
type invocation struct {
	sub        types.SubmissionEvent
	logger     *slog.Logger
	stagedPath string
	result     Result
}

type step func(ctx context.Context, inv *invocation) (State, error)

// Handle is the Lambda entry point for SNS notifications. Only a payload
// that cannot be parsed makes it return an error; partial failures still
// complete with status 200.
func (p *Pipeline) Handle(ctx context.Context, event events.SNSEvent) (events.APIGatewayProxyResponse, error) {
	logger := p.deps.Logger.With("invocation_id", invocationID(ctx))
	logger.Debug("received event", "records", len(event.Records))
	if len(event.Records) > 1 {
		logger.Warn("event carries more than one record, processing the first", "records", len(event.Records))
	}

	sub, err := ParseSNSEvent(event)
	if err != nil {
		logger.Error("failed to parse submission event", "error", err)
		return events.APIGatewayProxyResponse{}, err
	}

	result, err := p.run(ctx, sub, logger)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	status := types.StatusSuccess
	if !result.Succeeded() {
		status = types.StatusFail
	}
	body, err := json.Marshal(map[string]string{
		"submission_id":   sub.SubmissionID,
		"status":          status,
		"storage_path":    result.Key,
		"delivery_status": string(result.Notification.DeliveryStatus),
	})
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to marshal response: %w", err)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(body),
	}, nil
}

// Run processes an already parsed submission from ComputeKey to Done.
func (p *Pipeline) Run(ctx context.Context, sub types.SubmissionEvent) (*Result, error) {
	return p.run(ctx, sub, p.deps.Logger.With("invocation_id", invocationID(ctx)))
}

func (p *Pipeline) run(ctx context.Context, sub types.SubmissionEvent, logger *slog.Logger) (*Result, error) {
	inv := &invocation{
		sub:    sub,
		logger: logger.With("submission_id", sub.SubmissionID),
	}
	inv.result.Trace = []State{ReceiveEvent, ParseMetadata}
	defer p.cleanup(inv)

	steps := map[State]step{
		ComputeKey:   p.computeKey,
		Fetch:        p.fetch,
		Upload:       p.upload,
		Notify:       p.notify,
		RecordStatus: p.recordStatus,
	}

	state := ComputeKey
	for state != Done {
		inv.result.Trace = append(inv.result.Trace, state)
		next, err := steps[state](ctx, inv)
		if err != nil {
			inv.logger.Error("invocation aborted", "state", state.String(), "error", err)
			return nil, err
		}
		inv.logger.Debug("transition", "from", state.String(), "to", next.String())
		state = next
	}
	inv.result.Trace = append(inv.result.Trace, Done)

	inv.logger.Info("submission processed",
		"succeeded", inv.result.Succeeded(),
		"delivery_status", string(inv.result.Notification.DeliveryStatus),
	)
	return &inv.result, nil
}

func (p *Pipeline) computeKey(ctx context.Context, inv *invocation) (State, error) {
	inv.result.Key = utils.ComputeKey(inv.sub)
	inv.logger = inv.logger.With("storage_key", inv.result.Key)
	return Fetch, nil
}

func (p *Pipeline) fetch(ctx context.Context, inv *invocation) (State, error) {
	dest := filepath.Join(p.deps.StagingDir, utils.StagingName(inv.result.Key))

	path, err := p.deps.Fetcher.Fetch(ctx, inv.sub.SubmissionURL, dest)
	if err != nil {
		var fe *utils.FetchError
		if errors.As(err, &fe) {
			inv.result.Failure = fe.Message
			inv.logger.Warn("download rejected", "reason", string(fe.Reason), "error", err)
		} else {
			inv.result.Failure = reasonStaging
			inv.logger.Error("failed to stage download", "error", err)
		}
		return Notify, nil
	}

	inv.stagedPath = path
	return Upload, nil
}

func (p *Pipeline) upload(ctx context.Context, inv *invocation) (State, error) {
	err := p.deps.Store.Upload(ctx, inv.stagedPath, inv.result.Key)
	if err != nil {
		if storage.IsAlreadyExists(err) {
			inv.result.Failure = reasonAlreadyStored
		} else {
			inv.result.Failure = reasonUploadFailed
		}
		inv.logger.Error("upload failed", "error", err)
	}
	return Notify, nil
}

func (p *Pipeline) notify(ctx context.Context, inv *invocation) (State, error) {
	outcome, err := p.deps.Notifier.Send(ctx, inv.sub, mail.Notice{
		Succeeded:  inv.result.Failure == "",
		StorageKey: inv.result.Key,
		Reason:     inv.result.Failure,
	})
	if err != nil {
		return Done, &ParseError{Field: "submission.submission_date", Err: err}
	}
	inv.result.Notification = outcome
	return RecordStatus, nil
}

func (p *Pipeline) recordStatus(ctx context.Context, inv *invocation) (State, error) {
	record := &types.StatusRecord{
		ID:             inv.sub.SubmissionID,
		Recipient:      inv.sub.Email,
		Attempts:       inv.sub.Attempts,
		Status:         types.StatusSuccess,
		DeliveryStatus: inv.result.Notification.DeliveryStatus,
		BodyText:       inv.result.Notification.BodyText,
		StorageKey:     inv.result.Key,
		AssignmentID:   inv.sub.AssignmentID,
		RecordedAt:     p.deps.Now().Unix(),
	}
	if inv.result.Failure != "" {
		record.Status = types.StatusFail
	}
	record.ErrorMessage = errorMessage(inv.result.Failure, inv.result.Notification.ErrorDetail)
	inv.result.Record = record

	if err := p.deps.Recorder.Record(ctx, record); err != nil {
		inv.result.RecordErr = err
		inv.logger.Error("failed to record status", "error", err)
	}
	return Done, nil
}

func (p *Pipeline) cleanup(inv *invocation) {
	if inv.stagedPath == "" {
		return
	}
	if err := os.Remove(inv.stagedPath); err != nil && !os.IsNotExist(err) {
		inv.logger.Warn("failed to remove staged file", "path", inv.stagedPath, "error", err)
	}
}

// errorMessage joins the submission failure and the delivery failure, or
// returns nil when there is neither.
func errorMessage(failure string, delivery *string) *string {
	switch {
	case failure != "" && delivery != nil:
		msg := failure + " " + *delivery
		return &msg
	case failure != "":
		return &failure
	default:
		return delivery
	}
}

func invocationID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
