package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/leaddesk/internal/dispatch"
	"github.com/JonMunkholm/leaddesk/internal/export"
	"github.com/JonMunkholm/leaddesk/internal/history"
	"github.com/JonMunkholm/leaddesk/internal/messaging"
	"github.com/JonMunkholm/leaddesk/internal/schema"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

type stubFetcher struct {
	mu      sync.Mutex
	records []table.Record
	err     error
}

func (f *stubFetcher) Fetch(context.Context) ([]table.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.err
}

func (f *stubFetcher) set(records []table.Record, err error) {
	f.mu.Lock()
	f.records, f.err = records, err
	f.mu.Unlock()
}

// stubSender records calls in order and fails for numbers in fail. When hold
// is set, the first call waits for it to close.
type stubSender struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	hold  chan struct{}
	held  chan struct{}
}

func (s *stubSender) TemplateName() string { return "text_text1" }

func (s *stubSender) Send(_ context.Context, number string) error {
	s.mu.Lock()
	first := len(s.calls) == 0
	s.calls = append(s.calls, number)
	s.mu.Unlock()

	if first && s.hold != nil {
		close(s.held)
		<-s.hold
	}
	if s.fail[number] {
		return fmt.Errorf("send to %s: boom", number)
	}
	return nil
}

func (s *stubSender) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newHeldSender() *stubSender {
	return &stubSender{hold: make(chan struct{}), held: make(chan struct{})}
}

type memArchive struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (m *memArchive) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objs == nil {
		m.objs = make(map[string][]byte)
	}
	m.objs[key] = append([]byte(nil), data...)
	return nil
}

var validForm = messaging.Form{Header: messaging.HeaderText, HeaderText: "Hi", Text1: "Offer"}

func newTestService(t *testing.T, sender *stubSender, mutate func(*Deps)) *Service {
	t.Helper()
	s, err := schema.LoadVariant("leads-11")
	if err != nil {
		t.Fatal(err)
	}
	d := Deps{
		Schema:  s,
		Fetcher: &stubFetcher{},
		Senders: func(messaging.Form) (BatchSender, error) { return sender, nil },
		Limiter: NewBatchLimiter(1, 50*time.Millisecond),
	}
	if mutate != nil {
		mutate(&d)
	}
	svc, err := NewService(d)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func waitResult(t *testing.T, svc *Service, id string) *dispatch.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := svc.BatchResult(ctx, id)
	if err != nil {
		t.Fatalf("BatchResult() error = %v", err)
	}
	return res
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	if _, err := NewService(Deps{}); err == nil {
		t.Error("NewService(Deps{}) error = nil, want error")
	}
}

func TestRefresh(t *testing.T) {
	f := &stubFetcher{}
	svc := newTestService(t, &stubSender{}, func(d *Deps) { d.Fetcher = f })

	if svc.Dataset().Loaded() {
		t.Error("Loaded() = true before first refresh")
	}

	f.set([]table.Record{table.NewRecord("3", nil), table.NewRecord("5", nil)}, nil)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	ds := svc.Dataset()
	if ds.Version != 1 || len(ds.Records) != 2 || ds.Err != nil {
		t.Errorf("Dataset() = version %d, %d records, err %v; want 1, 2, nil", ds.Version, len(ds.Records), ds.Err)
	}

	f.set(nil, errors.New("unreachable"))
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want error")
	}
	ds = svc.Dataset()
	if ds.Version != 1 || len(ds.Records) != 2 || ds.Err == nil {
		t.Errorf("after failure: version %d, %d records, err %v; want old data kept with error", ds.Version, len(ds.Records), ds.Err)
	}

	f.set([]table.Record{table.NewRecord("3", nil)}, nil)
	_ = svc.Refresh(context.Background())
	if ds := svc.Dataset(); ds.Version != 2 || ds.Err != nil {
		t.Errorf("after recovery: version %d err %v, want 2 and nil", ds.Version, ds.Err)
	}
}

func TestStartBatch_Rejects(t *testing.T) {
	svc := newTestService(t, &stubSender{}, nil)

	tests := []struct {
		name    string
		form    messaging.Form
		targets []string
		want    string
	}{
		{"invalid form", messaging.Form{Header: messaging.HeaderText}, []string{"1"}, "MSG001"},
		{"no targets", validForm, nil, "BAT001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartBatch(context.Background(), tt.form, tt.targets)
			if got := MapError(err).Code; got != tt.want {
				t.Errorf("StartBatch() error = %v (code %s), want code %s", err, got, tt.want)
			}
		})
	}
}

func TestBatch_FailureIsIsolated(t *testing.T) {
	sender := &stubSender{fail: map[string]bool{"B": true}}
	archive := &memArchive{}
	svc := newTestService(t, sender, func(d *Deps) {
		d.Reporter = export.NewReporter(archive)
	})

	ctx := ContextWithClientIP(context.Background(), "10.0.0.7")
	id, err := svc.StartBatch(ctx, validForm, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("StartBatch() error = %v", err)
	}
	res := waitResult(t, svc, id)

	if got := sender.snapshot(); fmt.Sprint(got) != "[A B C]" {
		t.Errorf("send order = %v, want [A B C]", got)
	}
	if res.Attempted != 3 || len(res.Errors) != 1 || res.Errors[0].ID != "B" {
		t.Errorf("result = %+v, want 3 attempts and one error for B", res)
	}

	report, err := svc.ErrorReport(context.Background(), id)
	if err != nil {
		t.Fatalf("ErrorReport() error = %v", err)
	}
	var items []dispatch.ItemError
	if err := json.Unmarshal(report, &items); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if len(items) != 1 || items[0].ID != "B" || items[0].Error != "send to B: boom" {
		t.Errorf("report = %s", report)
	}
	if _, ok := archive.objs[export.ObjectKey(id)]; !ok {
		t.Errorf("report not archived under %s", export.ObjectKey(id))
	}

	entries, err := svc.History(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Failed != 1 || !entries[0].HasReport {
		t.Errorf("History() = %+v, want one entry with one failure", entries)
	}

	st, err := svc.BatchStatus(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Finished || st.Progress.Phase != dispatch.PhaseComplete || st.Progress.Done != 0 {
		t.Errorf("BatchStatus() = %+v, want finished complete with Done reset", st)
	}
}

func TestBatch_CleanRunHasNoReport(t *testing.T) {
	svc := newTestService(t, &stubSender{}, nil)
	id, err := svc.StartBatch(context.Background(), validForm, []string{"A"})
	if err != nil {
		t.Fatal(err)
	}
	waitResult(t, svc, id)

	if _, err := svc.ErrorReport(context.Background(), id); !errors.Is(err, ErrNoReport) {
		t.Errorf("ErrorReport() error = %v, want ErrNoReport", err)
	}
}

func TestBatch_TargetsAreSnapshotted(t *testing.T) {
	sender := newHeldSender()
	svc := newTestService(t, sender, nil)

	targets := []string{"A", "B"}
	id, err := svc.StartBatch(context.Background(), validForm, targets)
	if err != nil {
		t.Fatal(err)
	}
	<-sender.held
	targets[1] = "Z"
	close(sender.hold)
	waitResult(t, svc, id)

	if got := sender.snapshot(); fmt.Sprint(got) != "[A B]" {
		t.Errorf("sent to %v, want [A B]", got)
	}
}

func TestSubscribeProgress(t *testing.T) {
	sender := newHeldSender()
	svc := newTestService(t, sender, nil)

	id, err := svc.StartBatch(context.Background(), validForm, []string{"A", "B", "C"})
	if err != nil {
		t.Fatal(err)
	}
	<-sender.held
	ch, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	close(sender.hold)

	var done []int
	var last dispatch.Progress
	for p := range ch {
		done = append(done, p.Done)
		last = p
	}
	if fmt.Sprint(done) != "[0 1 2 3 0]" {
		t.Errorf("progress Done sequence = %v, want [0 1 2 3 0]", done)
	}
	if last.Phase != dispatch.PhaseComplete || last.Attempted != 3 {
		t.Errorf("final progress = %+v", last)
	}

	// A late subscriber gets the final state and a closed channel.
	ch, err = svc.SubscribeProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	waitResult(t, svc, id)
	var n int
	for range ch {
		n++
	}
	if n != 1 {
		t.Errorf("late subscriber got %d updates, want 1", n)
	}
}

func TestCancelBatch(t *testing.T) {
	sender := newHeldSender()
	sender.fail = map[string]bool{"A": true}
	svc := newTestService(t, sender, nil)

	id, err := svc.StartBatch(context.Background(), validForm, []string{"A", "B", "C"})
	if err != nil {
		t.Fatal(err)
	}
	<-sender.held
	if err := svc.CancelBatch(id); err != nil {
		t.Fatal(err)
	}
	close(sender.hold)

	res := waitResult(t, svc, id)
	if res.Phase != dispatch.PhaseCancelled || res.Attempted != 1 {
		t.Errorf("result = %+v, want cancelled after 1 attempt", res)
	}
	if _, err := svc.ErrorReport(context.Background(), id); err != nil {
		t.Errorf("cancelled batch should keep its partial report, got %v", err)
	}
	if err := svc.CancelBatch("missing"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("CancelBatch(missing) error = %v, want ErrBatchNotFound", err)
	}
}

func TestStartBatch_BusyWhenSlotTaken(t *testing.T) {
	sender := newHeldSender()
	svc := newTestService(t, sender, nil)

	id, err := svc.StartBatch(context.Background(), validForm, []string{"A"})
	if err != nil {
		t.Fatal(err)
	}
	<-sender.held

	if _, err := svc.StartBatch(context.Background(), validForm, []string{"B"}); !errors.Is(err, ErrTooManyBatches) {
		t.Errorf("second StartBatch() error = %v, want ErrTooManyBatches", err)
	}
	if got := len(svc.ActiveBatches()); got != 1 {
		t.Errorf("ActiveBatches() = %d, want 1", got)
	}

	close(sender.hold)
	waitResult(t, svc, id)
}

func TestBatchStatus_FallsBackToHistory(t *testing.T) {
	store := history.NewMemoryStore(10)
	svc := newTestService(t, &stubSender{fail: map[string]bool{"A": true}}, func(d *Deps) {
		d.History = store
		d.Retain = time.Millisecond
	})

	id, err := svc.StartBatch(ContextWithClientIP(context.Background(), "10.0.0.9"), validForm, []string{"A"})
	if err != nil {
		t.Fatal(err)
	}
	waitResult(t, svc, id)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, live := svc.batch(id); !live {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("batch was not dropped after the retain period")
		}
		time.Sleep(5 * time.Millisecond)
	}

	st, err := svc.BatchStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("BatchStatus() error = %v", err)
	}
	if !st.Finished || st.Failed != 1 || !st.HasReport {
		t.Errorf("BatchStatus() = %+v", st)
	}
	if _, err := svc.ErrorReport(context.Background(), id); err != nil {
		t.Errorf("ErrorReport() from history error = %v", err)
	}
	e, _ := store.Get(context.Background(), id)
	if e.ClientIP != "10.0.0.9" {
		t.Errorf("history ClientIP = %q, want 10.0.0.9", e.ClientIP)
	}
	if _, err := svc.BatchStatus(context.Background(), "nope"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("BatchStatus(nope) error = %v, want ErrBatchNotFound", err)
	}
}

func TestTargetsOf(t *testing.T) {
	svc := newTestService(t, &stubSender{}, nil)
	records := []table.Record{
		table.NewRecord("3", map[string]string{"number": "98"}),
		table.NewRecord("5", map[string]string{"number": "97"}),
	}
	if got := svc.TargetsOf(records); fmt.Sprint(got) != "[98 97]" {
		t.Errorf("TargetsOf() = %v, want [98 97]", got)
	}
}

func TestShutdownCancelsRunningBatches(t *testing.T) {
	sender := newHeldSender()
	svc := newTestService(t, sender, nil)

	id, err := svc.StartBatch(context.Background(), validForm, []string{"A", "B"})
	if err != nil {
		t.Fatal(err)
	}
	<-sender.held

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- svc.Shutdown(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	close(sender.hold)

	if err := <-done; err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if res := waitResult(t, svc, id); res.Phase != dispatch.PhaseCancelled {
		t.Errorf("phase = %s, want cancelled", res.Phase)
	}
}

func TestSubscribeProgress_SlowListenerGetsFinalState(t *testing.T) {
	const n = 1500 // more updates than a listener can buffer
	sender := newHeldSender()
	svc := newTestService(t, sender, nil)

	targets := make([]string, n)
	for i := range targets {
		targets[i] = fmt.Sprintf("98%08d", i)
	}
	id, err := svc.StartBatch(context.Background(), validForm, targets)
	if err != nil {
		t.Fatal(err)
	}
	<-sender.held
	ch, err := svc.SubscribeProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	close(sender.hold)

	// Read nothing until the run is over.
	waitResult(t, svc, id)

	var (
		last     dispatch.Progress
		received int
	)
	prev := -1
	for p := range ch {
		if p.Attempted < prev {
			t.Fatalf("Attempted went back from %d to %d", prev, p.Attempted)
		}
		prev = p.Attempted
		last = p
		received++
	}
	if received > listenerBuffer(n) {
		t.Errorf("received %d updates, buffer is %d", received, listenerBuffer(n))
	}
	if last.Phase != dispatch.PhaseComplete || last.Done != 0 || last.Attempted != n {
		t.Errorf("last progress = %+v, want complete with Done 0 and Attempted %d", last, n)
	}
}

func TestSendLatest(t *testing.T) {
	ch := make(chan dispatch.Progress, 2)
	for i := 1; i <= 5; i++ {
		sendLatest(ch, dispatch.Progress{Done: i})
	}
	close(ch)

	var got []int
	for p := range ch {
		got = append(got, p.Done)
	}
	if fmt.Sprint(got) != "[4 5]" {
		t.Errorf("buffered = %v, want [4 5]", got)
	}
}
