package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bidforge/readiness/internal/analysis"
	apperrors "github.com/bidforge/readiness/internal/errors"
	"github.com/bidforge/readiness/internal/monitoring"
)

// RecordService provides business logic for snapshot and outcome tracking
type RecordService struct {
	repo   *Repository
	logger *monitoring.Logger
}

// NewRecordService creates a new record service
func NewRecordService(repo *Repository, logger *monitoring.Logger) *RecordService {
	if logger == nil {
		logger = monitoring.NewLogger()
	}
	return &RecordService{
		repo:   repo,
		logger: logger,
	}
}

// RecordSnapshot stores a submission-time readiness snapshot for a bid.
func (s *RecordService) RecordSnapshot(ctx context.Context, bidID string, snapshot analysis.BidReadiness, acknowledged bool, submittedAt time.Time) (*analysis.OutcomeRecord, error) {
	start := time.Now()

	bidID = strings.TrimSpace(bidID)
	if bidID == "" {
		return nil, apperrors.NewValidationError("bidId is required")
	}
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	rec := NewSnapshotRecord(bidID, &snapshot, acknowledged, submittedAt)
	if err := s.repo.InsertSnapshot(ctx, rec); err != nil {
		s.logger.StoreLogger("record_snapshot", rec.ID, time.Since(start), err)
		return nil, apperrors.NewStorageError("record snapshot", err)
	}

	s.logger.StoreLogger("record_snapshot", rec.ID, time.Since(start), nil)
	return rec, nil
}

// RecordOutcome writes the decision for a bid onto its most recent record.
// A decision for a bid with no stored snapshot still creates a record so the
// miss shows up in completeness counts.
func (s *RecordService) RecordOutcome(ctx context.Context, bidID, outcome string, lossReasons []string, decidedAt time.Time) (*analysis.OutcomeRecord, error) {
	start := time.Now()

	bidID = strings.TrimSpace(bidID)
	if bidID == "" {
		return nil, apperrors.NewValidationError("bidId is required")
	}
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	if outcome != analysis.OutcomeWon && outcome != analysis.OutcomeLost {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("outcome must be %q or %q", analysis.OutcomeWon, analysis.OutcomeLost))
	}
	reasons := normalizeReasons(lossReasons)
	if outcome == analysis.OutcomeWon {
		reasons = nil
	}
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	existing, err := s.repo.LatestRecordForBid(ctx, bidID)
	switch {
	case err == nil:
		if err := s.repo.UpdateOutcome(ctx, existing.ID, outcome, reasons, decidedAt); err != nil {
			s.logger.StoreLogger("record_outcome", existing.ID, time.Since(start), err)
			return nil, apperrors.NewStorageError("record outcome", err)
		}
		existing.Outcome = outcome
		existing.LossReasons = reasons
		existing.DecidedAt = &decidedAt
		s.logger.StoreLogger("record_outcome", existing.ID, time.Since(start), nil)
		return existing, nil

	case errors.Is(err, sql.ErrNoRows):
		rec := NewOutcomeOnlyRecord(bidID, outcome, reasons, decidedAt)
		if err := s.repo.InsertOutcomeOnly(ctx, rec); err != nil {
			s.logger.StoreLogger("record_outcome", rec.ID, time.Since(start), err)
			return nil, apperrors.NewStorageError("record outcome", err)
		}
		s.logger.StoreLogger("record_outcome", rec.ID, time.Since(start), nil)
		return rec, nil

	default:
		s.logger.StoreLogger("record_outcome", "", time.Since(start), err)
		return nil, apperrors.NewStorageError("load record for bid", err)
	}
}

// GetRecord loads one record by ID.
func (s *RecordService) GetRecord(ctx context.Context, id string) (*analysis.OutcomeRecord, error) {
	rec, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("outcome record", id)
		}
		return nil, apperrors.NewStorageError("load record", err)
	}
	return rec, nil
}

// ListRecords loads records newest-first under the given filter.
func (s *RecordService) ListRecords(ctx context.Context, filter RecordFilter) ([]analysis.OutcomeRecord, error) {
	switch filter.Outcome {
	case "", FilterPending, analysis.OutcomeWon, analysis.OutcomeLost:
	default:
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("outcome filter must be %q, %q, or %q", analysis.OutcomeWon, analysis.OutcomeLost, FilterPending))
	}

	records, err := s.repo.ListRecords(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageError("list records", err)
	}
	return records, nil
}

// LoadAllRecords loads the full history for outcome analysis.
func (s *RecordService) LoadAllRecords(ctx context.Context) ([]analysis.OutcomeRecord, error) {
	start := time.Now()

	records, err := s.repo.ListRecords(ctx, RecordFilter{})
	if err != nil {
		s.logger.StoreLogger("load_all_records", "", time.Since(start), err)
		return nil, apperrors.NewStorageError("load records", err)
	}

	s.logger.StoreLogger("load_all_records", "", time.Since(start), nil)
	return records, nil
}

// PruneOlderThan removes records submitted more than retention ago.
func (s *RecordService) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, apperrors.NewValidationError("retention must be positive")
	}

	cutoff := time.Now().UTC().Add(-retention)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperrors.NewStorageError("prune records", err)
	}

	if removed > 0 {
		s.logger.Info("Pruned outcome records", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// Stats reports record-store counts for health reporting.
func (s *RecordService) Stats(ctx context.Context) (*StoreStats, error) {
	stats, err := s.repo.CountRecords(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("count records", err)
	}
	return stats, nil
}

// normalizeReasons trims loss-reason tags and drops empties.
func normalizeReasons(reasons []string) []string {
	var out []string
	for _, reason := range reasons {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			continue
		}
		out = append(out, reason)
	}
	return out
}
