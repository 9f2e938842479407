package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/okozhin/catalogd/internal"
	"github.com/okozhin/catalogd/internal/circuitbreaker"
	"github.com/okozhin/catalogd/internal/storage"
	"github.com/okozhin/catalogd/internal/telemetry"
)

// EntrySource fetches the external source's current product listing.
type EntrySource interface {
	FetchEntries(ctx context.Context) ([]catalog.Entry, error)
}

// Invalidator drops cached product listings after a sync pass.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Syncer reconciles the local product set with the external content source,
// treating the source as authoritative per record. It runs periodically as
// a background worker and on demand through Reconcile.
type Syncer struct {
	source   EntrySource
	store    storage.ProductStore
	inv      Invalidator
	metrics  *telemetry.Metrics // nil = no metrics
	interval time.Duration
	breaker  *circuitbreaker.Breaker
	tracer   trace.Tracer
}

// NewSyncer creates a Syncer. metrics may be nil; interval <= 0 disables
// the periodic loop: Run performs no passes and blocks until ctx is
// cancelled, leaving reconciles to the on-demand trigger.
func NewSyncer(source EntrySource, store storage.ProductStore, inv Invalidator, metrics *telemetry.Metrics, interval time.Duration) *Syncer {
	return &Syncer{
		source:   source,
		store:    store,
		inv:      inv,
		metrics:  metrics,
		interval: interval,
		breaker:  circuitbreaker.NewBreaker(circuitbreaker.DefaultConfig()),
		tracer:   telemetry.Tracer("sync"),
	}
}

// Name returns the worker identifier.
func (s *Syncer) Name() string { return "sync" }

// Run performs an initial reconcile pass, then repeats on the configured
// interval until ctx is cancelled. Errors are absorbed and logged; the
// worker itself never fails the runner.
func (s *Syncer) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Syncer) runOnce(ctx context.Context) {
	res, err := s.Reconcile(ctx)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "sync pass failed",
			slog.String("error", err.Error()),
		)
		return
	}
	slog.LogAttrs(ctx, slog.LevelInfo, "sync pass complete",
		slog.Int("fetched", res.Fetched),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("failed", res.Failed),
	)
}

// Reconcile performs one full fetch-and-upsert pass. Per-record failures
// are logged and counted without aborting the batch; only a failed fetch
// of the source listing returns an error. On completion the pagination
// cache is invalidated, partial progress included.
func (s *Syncer) Reconcile(ctx context.Context) (catalog.SyncResult, error) {
	ctx, span := s.tracer.Start(ctx, "sync.reconcile")
	defer span.End()
	start := time.Now()

	var res catalog.SyncResult

	// A source that has been failing recently is skipped outright rather
	// than burning a full request timeout per pass.
	if !s.breaker.Allow() {
		s.countRun("circuit_open")
		return res, fmt.Errorf("fetch entries: %w", catalog.ErrSourceUnavailable)
	}

	entries, err := s.source.FetchEntries(ctx)
	if err != nil {
		s.breaker.RecordError(circuitbreaker.ClassifyError(err))
		s.countRun("fetch_error")
		return res, fmt.Errorf("fetch entries: %w", err)
	}
	s.breaker.RecordSuccess()
	res.Fetched = len(entries)

	for _, e := range entries {
		if err := s.upsert(ctx, e, &res); err != nil {
			res.Failed++
			s.countRecordFailure()
			slog.LogAttrs(ctx, slog.LevelWarn, "sync record failed",
				slog.String("external_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	// Invalidate even on partial success: any subset of the batch may have
	// changed what listings should show.
	s.inv.Invalidate(ctx)

	outcome := "ok"
	if res.Failed > 0 {
		outcome = "partial"
	}
	s.countRun(outcome)
	if s.metrics != nil {
		s.metrics.SyncDuration.Observe(time.Since(start).Seconds())
		s.metrics.ProductsUpserted.WithLabelValues("created").Add(float64(res.Created))
		s.metrics.ProductsUpserted.WithLabelValues("updated").Add(float64(res.Updated))
	}
	span.SetAttributes(
		attribute.Int("sync.fetched", res.Fetched),
		attribute.Int("sync.failed", res.Failed),
	)
	return res, nil
}

// upsert applies one external record: update the matching local product in
// place (soft-deleted rows included, never duplicated), or create a new one.
func (s *Syncer) upsert(ctx context.Context, e catalog.Entry, res *catalog.SyncResult) error {
	if e.ID == "" {
		return errors.New("entry has no source id")
	}
	if e.Name == "" {
		return errors.New("entry has no name")
	}

	now := time.Now().UTC()

	existing, err := s.store.GetProductByExternalID(ctx, e.ID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		p := &catalog.Product{
			ID:         uuid.Must(uuid.NewV7()).String(),
			Name:       e.Name,
			Category:   e.Category,
			Price:      e.Price,
			ExternalID: e.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("create: %w", err)
		}
		res.Created++
		return nil

	case err != nil:
		return fmt.Errorf("lookup: %w", err)
	}

	// Overwrite mutable fields only; the local ID, creation time, and
	// deletion marker are untouched.
	existing.Name = e.Name
	existing.Category = e.Category
	existing.Price = e.Price
	existing.UpdatedAt = now
	if err := s.store.UpdateProduct(ctx, existing); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	res.Updated++
	return nil
}

func (s *Syncer) countRun(outcome string) {
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues(outcome).Inc()
	}
}

func (s *Syncer) countRecordFailure() {
	if s.metrics != nil {
		s.metrics.SyncRecordFailures.Inc()
	}
}
