package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/leaddesk/internal/dispatch"
	"github.com/JonMunkholm/leaddesk/internal/export"
	"github.com/JonMunkholm/leaddesk/internal/history"
	"github.com/JonMunkholm/leaddesk/internal/messaging"
	"github.com/JonMunkholm/leaddesk/internal/schema"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

// DefaultRetain is how long a finished batch stays queryable in memory.
const DefaultRetain = time.Hour

// Fetcher loads the full lead dataset.
type Fetcher interface {
	Fetch(ctx context.Context) ([]table.Record, error)
}

// BatchSender sends one template to one number.
type BatchSender interface {
	dispatch.Sender
	TemplateName() string
}

// SenderFactory builds the sender for one batch from a validated form.
type SenderFactory func(form messaging.Form) (BatchSender, error)

// MessagingSenders adapts a messaging client into a SenderFactory.
func MessagingSenders(c *messaging.Client) SenderFactory {
	return func(form messaging.Form) (BatchSender, error) {
		ts, err := c.NewTemplateSender(form)
		if err != nil {
			return nil, err
		}
		return ts, nil
	}
}

// Deps wires the Service to its collaborators. Schema, Fetcher and Senders
// are required.
type Deps struct {
	Schema   *schema.Schema
	Fetcher  Fetcher
	Senders  SenderFactory
	Reporter *export.Reporter // nil: reports are kept in memory only
	History  history.Store    // nil: an in-memory store is used
	Limiter  *BatchLimiter    // nil: one batch at a time

	BatchTimeout time.Duration // 0: no limit
	Retain       time.Duration // how long finished batches stay in memory
}

// Service owns the dataset and all batch runs.
type Service struct {
	schema   *schema.Schema
	fetcher  Fetcher
	senders  SenderFactory
	reporter *export.Reporter
	history  history.Store
	limiter  *BatchLimiter
	timeout  time.Duration
	retain   time.Duration

	dataMu  sync.RWMutex
	dataset Dataset

	mu      sync.RWMutex
	batches map[string]*activeBatch
}

// NewService creates a Service. The dataset is empty until Refresh succeeds.
func NewService(d Deps) (*Service, error) {
	if d.Schema == nil {
		return nil, errors.New("core: schema is required")
	}
	if d.Fetcher == nil {
		return nil, errors.New("core: fetcher is required")
	}
	if d.Senders == nil {
		return nil, errors.New("core: sender factory is required")
	}
	if d.Reporter == nil {
		d.Reporter = export.NewReporter(nil)
	}
	if d.History == nil {
		d.History = history.NewMemoryStore(0)
	}
	if d.Limiter == nil {
		d.Limiter = NewBatchLimiter(1, 0)
	}
	if d.Retain <= 0 {
		d.Retain = DefaultRetain
	}

	return &Service{
		schema:   d.Schema,
		fetcher:  d.Fetcher,
		senders:  d.Senders,
		reporter: d.Reporter,
		history:  d.History,
		limiter:  d.Limiter,
		timeout:  d.BatchTimeout,
		retain:   d.Retain,
		batches:  make(map[string]*activeBatch),
	}, nil
}

// Schema returns the active schema variant.
func (s *Service) Schema() *schema.Schema { return s.schema }

// Columns returns the table columns for the active schema.
func (s *Service) Columns() []table.Column { return s.schema.TableColumns() }

// Limiter exposes the batch limiter for health reporting and shutdown.
func (s *Service) Limiter() *BatchLimiter { return s.limiter }

// Refresh fetches the sheet and replaces the dataset. On failure the previous
// records stay in place and the error is kept on the dataset so the page can
// show it instead of an empty table.
func (s *Service) Refresh(ctx context.Context) error {
	start := time.Now()
	records, err := s.fetcher.Fetch(ctx)

	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	if err != nil {
		s.dataset.Err = err
		slog.Error("dataset refresh failed", "error", err, "kept_records", len(s.dataset.Records))
		return fmt.Errorf("refresh dataset: %w", err)
	}

	s.dataset = Dataset{
		Records:   records,
		Version:   s.dataset.Version + 1,
		FetchedAt: time.Now(),
	}
	slog.Info("dataset refreshed",
		"records", len(records),
		"version", s.dataset.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Dataset returns the current snapshot. Records must not be modified.
func (s *Service) Dataset() Dataset {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.dataset
}

// DatasetVersion returns the current dataset version without copying it.
func (s *Service) DatasetVersion() uint64 {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.dataset.Version
}
