package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/leaddesk/internal/dispatch"
	"github.com/JonMunkholm/leaddesk/internal/history"
	"github.com/JonMunkholm/leaddesk/internal/logging"
	"github.com/JonMunkholm/leaddesk/internal/messaging"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

var (
	// ErrNoTargets is returned when a batch is submitted with nothing selected.
	ErrNoTargets = errors.New("no targets selected")

	// ErrBatchNotFound is returned for an unknown or expired batch id.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrNoReport is returned when a batch finished without errors.
	ErrNoReport = errors.New("batch has no error report")
)

// historyTimeout bounds the write of a finished batch to the history store.
const historyTimeout = 10 * time.Second

type activeBatch struct {
	ID           string
	TemplateName string
	Targets      int
	ClientIP     string
	StartedAt    time.Time
	Cancel       context.CancelFunc
	Done         chan struct{}

	// Guarded by ListenerMu.
	Progress   dispatch.Progress
	Result     *dispatch.Result
	Report     []byte
	Listeners  []chan dispatch.Progress
	ListenerMu sync.Mutex
}

// TargetsOf extracts the send targets from records in order.
func (s *Service) TargetsOf(records []table.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Get(s.schema.Target)
	}
	return out
}

// StartBatch validates the form, waits for a free batch slot and starts
// sending in the background. It returns the batch id immediately; use
// SubscribeProgress or BatchStatus to follow the run.
//
// targets is copied: changing the selection afterwards does not affect the run.
func (s *Service) StartBatch(ctx context.Context, form messaging.Form, targets []string) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	if len(targets) == 0 {
		return "", ErrNoTargets
	}

	sender, err := s.senders(form)
	if err != nil {
		return "", fmt.Errorf("prepare sender: %w", err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	batchID := uuid.NewString()

	// The batch outlives the request that started it.
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}

	b := &activeBatch{
		ID:           batchID,
		TemplateName: sender.TemplateName(),
		Targets:      len(targets),
		ClientIP:     ClientIPFromContext(ctx),
		StartedAt:    time.Now(),
		Cancel:       cancel,
		Done:         make(chan struct{}),
		Progress: dispatch.Progress{
			Total: len(targets),
			Phase: dispatch.PhaseRunning,
		},
	}

	s.mu.Lock()
	s.batches[batchID] = b
	s.mu.Unlock()

	job := dispatch.NewJob(batchID, targets, sender)
	go s.runBatch(runCtx, b, job)

	return batchID, nil
}

func (s *Service) runBatch(ctx context.Context, b *activeBatch, job dispatch.Job) {
	log := logging.WithFields(ctx, "batch_id", b.ID, "template", b.TemplateName, "targets", b.Targets)
	log.Info("batch started")

	defer func() {
		b.closeListeners()
		close(b.Done)
		s.limiter.Release()
		s.cleanup(b.ID, s.retain)
	}()
	defer b.Cancel()

	job.OnProgress = b.publish
	job.Export = func(ctx context.Context, errs []dispatch.ItemError) error {
		report, err := s.reporter.Report(ctx, b.ID, errs)
		b.ListenerMu.Lock()
		b.Report = report
		b.ListenerMu.Unlock()
		return err
	}

	res := dispatch.Run(ctx, job)
	if res.ExportErr != nil {
		log.Error("error report export failed", "error", res.ExportErr)
	}

	b.ListenerMu.Lock()
	b.Result = &res
	report := b.Report
	b.ListenerMu.Unlock()

	hctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	err := s.history.Record(hctx, history.Entry{
		ID:           b.ID,
		TemplateName: b.TemplateName,
		Targets:      b.Targets,
		Attempted:    res.Attempted,
		Failed:       len(res.Errors),
		Status:       string(res.Phase),
		Report:       report,
		ClientIP:     b.ClientIP,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
	})
	if err != nil {
		log.Error("record batch history", "error", err)
	}

	log.Info("batch finished",
		"phase", res.Phase,
		"attempted", res.Attempted,
		"failed", len(res.Errors),
		"duration_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	)
}

// publish stores p and fans it out. A listener whose buffer is full loses
// its oldest queued update, so the newest one, and finally the end state,
// always gets through.
func (b *activeBatch) publish(p dispatch.Progress) {
	b.ListenerMu.Lock()
	defer b.ListenerMu.Unlock()

	b.Progress = p
	for _, ch := range b.Listeners {
		sendLatest(ch, p)
	}
}

// sendLatest never blocks. It must only be called with ListenerMu held, so
// there is a single sender per channel.
func sendLatest(ch chan dispatch.Progress, p dispatch.Progress) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (b *activeBatch) closeListeners() {
	b.ListenerMu.Lock()
	defer b.ListenerMu.Unlock()

	for _, ch := range b.Listeners {
		close(ch)
	}
	b.Listeners = nil
}

func (b *activeBatch) status() BatchStatus {
	b.ListenerMu.Lock()
	defer b.ListenerMu.Unlock()

	st := BatchStatus{
		ID:           b.ID,
		TemplateName: b.TemplateName,
		Targets:      b.Targets,
		Progress:     b.Progress,
		Failed:       b.Progress.Failed,
		StartedAt:    b.StartedAt,
		HasReport:    len(b.Report) > 0,
	}
	if b.Result != nil {
		st.Finished = true
		st.Failed = len(b.Result.Errors)
		finished := b.Result.FinishedAt
		st.FinishedAt = &finished
		if b.Result.ExportErr != nil {
			st.ExportError = b.Result.ExportErr.Error()
		}
	}
	return st
}

// cleanup forgets the batch after delay. History keeps the summary.
func (s *Service) cleanup(batchID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.batches, batchID)
		s.mu.Unlock()
	})
}

func (s *Service) batch(batchID string) (*activeBatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	return b, ok
}

// SubscribeProgress returns a channel that receives progress updates. The
// current progress is sent immediately. The channel is closed when the batch
// ends; a subscription to a finished batch yields its final progress and is
// closed at once.
func (s *Service) SubscribeProgress(batchID string) (<-chan dispatch.Progress, error) {
	b, ok := s.batch(batchID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	ch := make(chan dispatch.Progress, listenerBuffer(b.Targets))

	b.ListenerMu.Lock()
	defer b.ListenerMu.Unlock()

	ch <- b.Progress
	if b.Result != nil {
		close(ch)
		return ch, nil
	}
	b.Listeners = append(b.Listeners, ch)
	return ch, nil
}

func listenerBuffer(targets int) int {
	n := targets + 2
	if n > 1024 {
		n = 1024
	}
	return n
}

// CancelBatch stops a running batch before its next item. The item in flight
// settles first and errors so far are still reported.
func (s *Service) CancelBatch(batchID string) error {
	b, ok := s.batch(batchID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	b.Cancel()
	return nil
}

// BatchResult blocks until the batch finishes or ctx is done.
func (s *Service) BatchResult(ctx context.Context, batchID string) (*dispatch.Result, error) {
	b, ok := s.batch(batchID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	select {
	case <-b.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	b.ListenerMu.Lock()
	defer b.ListenerMu.Unlock()
	return b.Result, nil
}

// BatchStatus returns the state of a live or recently finished batch, falling
// back to history for older runs.
func (s *Service) BatchStatus(ctx context.Context, batchID string) (BatchStatus, error) {
	if b, ok := s.batch(batchID); ok {
		return b.status(), nil
	}

	e, err := s.history.Get(ctx, batchID)
	if errors.Is(err, history.ErrNotFound) {
		return BatchStatus{}, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if err != nil {
		return BatchStatus{}, err
	}
	return statusFromHistory(*e), nil
}

func statusFromHistory(e history.Entry) BatchStatus {
	finished := e.FinishedAt
	return BatchStatus{
		ID:           e.ID,
		TemplateName: e.TemplateName,
		Targets:      e.Targets,
		Progress: dispatch.Progress{
			Total:     e.Targets,
			Failed:    e.Failed,
			Attempted: e.Attempted,
			Phase:     dispatch.Phase(e.Status),
		},
		Finished:   true,
		Failed:     e.Failed,
		HasReport:  e.HasReport(),
		StartedAt:  e.StartedAt,
		FinishedAt: &finished,
	}
}

// ErrorReport returns the errors.json bytes of a finished batch. A batch that
// ended without errors has no report and yields ErrNoReport.
func (s *Service) ErrorReport(ctx context.Context, batchID string) ([]byte, error) {
	if b, ok := s.batch(batchID); ok {
		b.ListenerMu.Lock()
		report, finished := b.Report, b.Result != nil
		b.ListenerMu.Unlock()

		if len(report) > 0 {
			return report, nil
		}
		if finished {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("%w: batch %s still running", ErrNoReport, batchID)
	}

	e, err := s.history.Get(ctx, batchID)
	if errors.Is(err, history.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if err != nil {
		return nil, err
	}
	if !e.HasReport() {
		return nil, ErrNoReport
	}
	return e.Report, nil
}

// History lists finished batches, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]BatchStatus, error) {
	entries, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]BatchStatus, len(entries))
	for i, e := range entries {
		out[i] = statusFromHistory(e)
	}
	return out, nil
}

// ActiveBatches returns the batches still running.
func (s *Service) ActiveBatches() []BatchStatus {
	s.mu.RLock()
	list := make([]*activeBatch, 0, len(s.batches))
	for _, b := range s.batches {
		list = append(list, b)
	}
	s.mu.RUnlock()

	var out []BatchStatus
	for _, b := range list {
		if st := b.status(); !st.Finished {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Shutdown cancels running batches and waits for them to drain.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, b := range s.batches {
		b.Cancel()
	}
	s.mu.RUnlock()
	return s.limiter.WaitForDrain(ctx)
}
