package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shortage-service/internal/classifier"
	"shortage-service/internal/models"
	"shortage-service/internal/store"
	"shortage-service/internal/util"

	"go.uber.org/zap"
)

// ExceptionStore is the slice of the store the refresh cycle needs.
type ExceptionStore interface {
	EnsureSchema(ctx context.Context) error
	Reconcile(ctx context.Context, source models.Source, batch []json.RawMessage, now time.Time) (*store.ReconcileResult, error)
}

// SourceFetcher fetches the complete current exception set for one
// platform.
type SourceFetcher interface {
	FetchExceptionOrders(ctx context.Context) ([]json.RawMessage, error)
}

// RefreshLocker serializes refreshes of the same source.
type RefreshLocker interface {
	AcquireRefreshLock(ctx context.Context, source models.Source, ttl time.Duration) (bool, error)
	ReleaseRefreshLock(ctx context.Context, source models.Source) error
}

// RefreshPublisher emits refresh lifecycle events.
type RefreshPublisher interface {
	PublishReconcileCompleted(ctx context.Context, event *models.ReconcileCompletedEvent) error
	PublishRefreshFailed(ctx context.Context, source models.Source, reason string) error
}

// RefreshService runs the fetch → classify → reconcile cycle for both
// sources. A failure in one source's cycle is logged and does not stop
// the other source.
type RefreshService struct {
	store     ExceptionStore
	stord     SourceFetcher
	shipbob   SourceFetcher
	locker    RefreshLocker
	publisher RefreshPublisher
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewRefreshService creates a new refresh service.
func NewRefreshService(
	exceptionStore ExceptionStore,
	stord SourceFetcher,
	shipbob SourceFetcher,
	locker RefreshLocker,
	publisher RefreshPublisher,
	lockTTL time.Duration,
) *RefreshService {
	return &RefreshService{
		store:     exceptionStore,
		stord:     stord,
		shipbob:   shipbob,
		locker:    locker,
		publisher: publisher,
		lockTTL:   lockTTL,
		logger:    util.GetLogger(),
	}
}

// filterStordOOS keeps only warehouse orders with at least one
// out-of-stock SKU. The platform's server-side status filter is
// broader than genuine OOS, so the classifier decides.
func filterStordOOS(raws []json.RawMessage) []json.RawMessage {
	var out []json.RawMessage
	for _, raw := range raws {
		var order models.StordOrder
		if err := json.Unmarshal(raw, &order); err != nil {
			continue
		}
		if len(classifier.StordOOSSKUs(&order)) > 0 {
			out = append(out, raw)
		}
	}
	return out
}

// RefreshSource fetches the active exception set for one source and
// reconciles it against the store. The empty set is still reconciled:
// it resolves every open exception for the source.
func (s *RefreshService) RefreshSource(ctx context.Context, source models.Source) error {
	ctx, span := util.StartSpan(ctx, "RefreshService.RefreshSource")
	defer span.End()

	var fetcher SourceFetcher
	switch source {
	case models.SourceStord:
		fetcher = s.stord
	case models.SourceShipbob:
		fetcher = s.shipbob
	default:
		return fmt.Errorf("%w: %q", models.ErrInvalidSource, source)
	}

	if s.locker != nil {
		acquired, err := s.locker.AcquireRefreshLock(ctx, source, s.lockTTL)
		if err != nil {
			s.logger.Warn("Refresh lock check failed, proceeding without lock",
				zap.String("source", string(source)),
				zap.Error(err))
		} else if !acquired {
			s.logger.Info("Refresh already in flight, skipping cycle",
				zap.String("source", string(source)))
			return nil
		} else {
			defer func() {
				if err := s.locker.ReleaseRefreshLock(context.Background(), source); err != nil {
					s.logger.Error("Failed to release refresh lock",
						zap.String("source", string(source)),
						zap.Error(err))
				}
			}()
		}
	}

	if err := s.store.EnsureSchema(ctx); err != nil {
		return s.fail(ctx, source, fmt.Errorf("failed to ensure schema: %w", err))
	}

	batch, err := fetcher.FetchExceptionOrders(ctx)
	if err != nil {
		return s.fail(ctx, source, fmt.Errorf("failed to fetch exception orders: %w", err))
	}
	if source == models.SourceStord {
		fetched := len(batch)
		batch = filterStordOOS(batch)
		s.logger.Info("Filtered stord orders to OOS set",
			zap.Int("fetched", fetched),
			zap.Int("oos", len(batch)))
	}

	now := time.Now().UTC()
	start := time.Now()
	result, err := s.store.Reconcile(ctx, source, batch, now)
	if err != nil {
		return s.fail(ctx, source, fmt.Errorf("failed to reconcile: %w", err))
	}
	util.ReconcileDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())

	label := string(source)
	util.ExceptionsInsertedTotal.WithLabelValues(label).Add(float64(result.Inserted))
	util.ExceptionsUpdatedTotal.WithLabelValues(label).Add(float64(result.Updated))
	util.ExceptionsResolvedTotal.WithLabelValues(label).Add(float64(result.Resolved))
	util.ExceptionsSkippedTotal.WithLabelValues(label).Add(float64(result.Skipped))

	s.logger.Info("Reconciliation completed",
		zap.String("source", label),
		zap.Int("batch_size", result.BatchSize),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("resolved", result.Resolved),
		zap.Int("skipped", result.Skipped))

	if s.publisher != nil {
		event := &models.ReconcileCompletedEvent{
			Source:    source,
			BatchSize: result.BatchSize,
			Inserted:  result.Inserted,
			Updated:   result.Updated,
			Resolved:  result.Resolved,
			SyncedAt:  now,
		}
		if err := s.publisher.PublishReconcileCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish ReconcileCompleted event", zap.Error(err))
		}
	}

	return nil
}

// fail records a failed cycle. The next scheduled run is the retry.
func (s *RefreshService) fail(ctx context.Context, source models.Source, err error) error {
	util.RefreshFailuresTotal.WithLabelValues(string(source)).Inc()
	s.logger.Error("Source refresh failed",
		zap.String("source", string(source)),
		zap.Error(err))
	if s.publisher != nil {
		if pubErr := s.publisher.PublishRefreshFailed(ctx, source, err.Error()); pubErr != nil {
			s.logger.Error("Failed to publish RefreshFailed event", zap.Error(pubErr))
		}
	}
	return err
}

// RefreshAll refreshes every source. Each source's failure is isolated:
// the sibling still runs, and the combined error is for logging only.
func (s *RefreshService) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, source := range models.Sources() {
		if err := s.RefreshSource(ctx, source); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source, err))
		}
	}
	return errors.Join(errs...)
}

// RefreshScope dispatches a refresh request by scope name: a source
// name or "all".
func (s *RefreshService) RefreshScope(ctx context.Context, scope string) error {
	if scope == "" || scope == models.RefreshScopeAll {
		return s.RefreshAll(ctx)
	}
	source, err := models.ParseSource(scope)
	if err != nil {
		return err
	}
	return s.RefreshSource(ctx, source)
}
