// Package dispatch runs a batch of sends strictly one after another.
//
// Every target is attempted exactly once, in order. A failed item is
// recorded and the run moves on; nothing is retried. Progress is published
// synchronously after each attempt, so observers see 1, 2, ... n with no
// gaps, followed by a single reset to 0 marking completion.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/JonMunkholm/leaddesk/internal/observability"
)

// Sender performs one remote call for one target.
type Sender interface {
	Send(ctx context.Context, target string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, target string) error

func (f SenderFunc) Send(ctx context.Context, target string) error { return f(ctx, target) }

// Phase is the lifecycle state of a run.
type Phase string

const (
	PhaseRunning   Phase = "running"
	PhaseComplete  Phase = "complete"
	PhaseCancelled Phase = "cancelled"
)

// Progress is what observers see after each item.
type Progress struct {
	Done      int   `json:"done"` // items attempted so far; 0 once the run has ended
	Total     int   `json:"total"`
	Failed    int   `json:"failed"`
	Attempted int   `json:"attempted"`
	Phase     Phase `json:"phase"`
}

// ItemError is one failed target. Upload and send failures are recorded
// the same way; Status and Detail carry the remote response when there was one.
type ItemError struct {
	ID     string          `json:"id"`
	Error  string          `json:"error"`
	Status int             `json:"status,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Result summarizes a finished run.
type Result struct {
	Attempted  int
	Errors     []ItemError
	Phase      Phase
	ExportErr  error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Job is one run over a fixed target list.
type Job struct {
	ID      string
	Targets []string
	Sender  Sender

	// OnProgress is called synchronously after every attempt and once more
	// with Done reset to 0 when the run ends.
	OnProgress func(Progress)

	// Export receives the error list when the run ended with at least one
	// error. It is not called for a clean run.
	Export func(ctx context.Context, errs []ItemError) error
}

// NewJob copies targets so later changes to the caller's slice cannot
// reach an in-flight run.
func NewJob(id string, targets []string, sender Sender) Job {
	cp := make([]string, len(targets))
	copy(cp, targets)
	return Job{ID: id, Targets: cp, Sender: sender}
}

// Run executes the job. Cancelling ctx stops the run before the next item;
// the item in flight settles first, and errors gathered so far are still
// exported.
func Run(ctx context.Context, job Job) Result {
	ctx, span := observability.StartSpan(ctx, "dispatch.run",
		attribute.String("job.id", job.ID),
		attribute.Int("job.targets", len(job.Targets)),
	)
	defer span.End()

	res := Result{Phase: PhaseComplete, StartedAt: time.Now()}
	publish := func(p Progress) {
		if job.OnProgress != nil {
			job.OnProgress(p)
		}
	}

	total := len(job.Targets)
	for i, target := range job.Targets {
		if ctx.Err() != nil {
			res.Phase = PhaseCancelled
			break
		}

		if err := sendOne(ctx, job.Sender, i, target); err != nil {
			res.Errors = append(res.Errors, NewItemError(target, err))
		}
		res.Attempted++
		publish(Progress{
			Done:      res.Attempted,
			Total:     total,
			Failed:    len(res.Errors),
			Attempted: res.Attempted,
			Phase:     PhaseRunning,
		})
	}

	if len(res.Errors) > 0 && job.Export != nil {
		// The run's own context may be cancelled; the report is still wanted.
		res.ExportErr = job.Export(context.WithoutCancel(ctx), res.Errors)
		if res.ExportErr != nil {
			span.RecordError(res.ExportErr)
		}
	}

	res.FinishedAt = time.Now()
	span.SetAttributes(
		attribute.Int("job.attempted", res.Attempted),
		attribute.Int("job.failed", len(res.Errors)),
		attribute.String("job.phase", string(res.Phase)),
	)

	publish(Progress{
		Done:      0,
		Total:     total,
		Failed:    len(res.Errors),
		Attempted: res.Attempted,
		Phase:     res.Phase,
	})
	return res
}

func sendOne(ctx context.Context, s Sender, index int, target string) error {
	ctx, span := observability.StartSpan(ctx, "dispatch.send", attribute.Int("item.index", index))
	defer span.End()

	err := s.Send(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
	}
	return err
}

// NewItemError records a failure. A remote status and a JSON body are
// lifted from the error chain when present.
func NewItemError(id string, err error) ItemError {
	ie := ItemError{ID: id, Error: err.Error()}

	var st interface{ HTTPStatus() int }
	if errors.As(err, &st) {
		ie.Status = st.HTTPStatus()
	}
	var dt interface{ Detail() json.RawMessage }
	if errors.As(err, &dt) {
		ie.Detail = dt.Detail()
	}
	return ie
}
