package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/bidforge/readiness/internal/analysis"
)

// recordColumns is the scan order shared by every joined record query.
var recordColumns = []string{
	"r.id", "r.bid_id", "r.outcome", "r.loss_reasons",
	"r.risks_acknowledged", "r.submitted_at", "r.decided_at", "s.payload",
}

// Repository handles record-store operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(r.db.placeholderFormat())
}

func (r *Repository) selectRecords() squirrel.SelectBuilder {
	return r.builder().
		Select(recordColumns...).
		From("outcome_records r").
		LeftJoin("snapshots s ON s.id = r.snapshot_id")
}

// InsertSnapshot stores a submission-time snapshot and the tracked record
// pointing at it.
func (r *Repository) InsertSnapshot(ctx context.Context, rec *analysis.OutcomeRecord) error {
	payload, err := marshalSnapshot(rec.Snapshot)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snapshotID := uuid.New().String()
	now := time.Now().UTC()

	query, args, err := r.builder().
		Insert("snapshots").
		Columns("id", "bid_id", "score", "recommendation", "config_version", "payload", "created_at").
		Values(snapshotID, rec.BidID, rec.Snapshot.Score, rec.Snapshot.Recommendation, rec.Snapshot.ConfigVersion, payload, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build snapshot insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	query, args, err = r.builder().
		Insert("outcome_records").
		Columns("id", "bid_id", "snapshot_id", "outcome", "loss_reasons",
			"risks_acknowledged", "submitted_at", "decided_at", "created_at", "updated_at").
		Values(rec.ID, rec.BidID, snapshotID, rec.Outcome, nil,
			rec.RisksAcknowledged, rec.SubmittedAt, nullableTime(rec.DecidedAt), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	return nil
}

// InsertOutcomeOnly stores a record whose decision arrived without a snapshot.
func (r *Repository) InsertOutcomeOnly(ctx context.Context, rec *analysis.OutcomeRecord) error {
	reasons, err := marshalReasons(rec.LossReasons)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	query, args, err := r.builder().
		Insert("outcome_records").
		Columns("id", "bid_id", "snapshot_id", "outcome", "loss_reasons",
			"risks_acknowledged", "submitted_at", "decided_at", "created_at", "updated_at").
		Values(rec.ID, rec.BidID, nil, rec.Outcome, reasons,
			rec.RisksAcknowledged, rec.SubmittedAt, nullableTime(rec.DecidedAt), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// GetRecord loads one record by ID. Returns sql.ErrNoRows (wrapped) when the
// record does not exist.
func (r *Repository) GetRecord(ctx context.Context, id string) (*analysis.OutcomeRecord, error) {
	query, args, err := r.selectRecords().Where(squirrel.Eq{"r.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build record query: %w", err)
	}

	var row recordRow
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(row.scanTargets()...); err != nil {
		return nil, fmt.Errorf("query record %s: %w", id, err)
	}

	return row.toRecord()
}

// LatestRecordForBid loads the most recently submitted record for a bid.
// Returns sql.ErrNoRows (wrapped) when the bid has no records.
func (r *Repository) LatestRecordForBid(ctx context.Context, bidID string) (*analysis.OutcomeRecord, error) {
	query, args, err := r.selectRecords().
		Where(squirrel.Eq{"r.bid_id": bidID}).
		OrderBy("r.submitted_at DESC", "r.created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest-record query: %w", err)
	}

	var row recordRow
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(row.scanTargets()...); err != nil {
		return nil, fmt.Errorf("query latest record for bid %s: %w", bidID, err)
	}

	return row.toRecord()
}

// UpdateOutcome writes the decision onto an existing record. Re-reported
// outcomes overwrite the previous decision.
func (r *Repository) UpdateOutcome(ctx context.Context, id, outcome string, lossReasons []string, decidedAt time.Time) error {
	reasons, err := marshalReasons(lossReasons)
	if err != nil {
		return err
	}

	query, args, err := r.builder().
		Update("outcome_records").
		Set("outcome", outcome).
		Set("loss_reasons", reasons).
		Set("decided_at", decidedAt).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outcome update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update outcome for record %s: %w", id, err)
	}

	return nil
}

// ListRecords loads records newest-first, applying any filter constraints.
func (r *Repository) ListRecords(ctx context.Context, filter RecordFilter) ([]analysis.OutcomeRecord, error) {
	q := r.selectRecords()

	switch filter.Outcome {
	case "":
	case FilterPending:
		q = q.Where(squirrel.Eq{"r.outcome": ""})
	default:
		q = q.Where(squirrel.Eq{"r.outcome": filter.Outcome})
	}
	if filter.MinScore > 0 {
		q = q.Where(squirrel.GtOrEq{"s.score": filter.MinScore})
	}
	if !filter.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"r.submitted_at": filter.Since})
	}

	q = q.OrderBy("r.submitted_at DESC", "r.created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build record listing: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []analysis.OutcomeRecord
	for rows.Next() {
		var row recordRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// CountRecords reports total and analysis-ready record counts.
func (r *Repository) CountRecords(ctx context.Context) (*StoreStats, error) {
	query, args, err := r.builder().
		Select("COUNT(*)").
		From("outcome_records").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build total count: %w", err)
	}

	var stats StoreStats
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	query, args, err = r.builder().
		Select("COUNT(*)").
		From("outcome_records").
		Where(squirrel.NotEq{"snapshot_id": nil}).
		Where(squirrel.Eq{"outcome": []string{analysis.OutcomeWon, analysis.OutcomeLost}}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build complete count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.CompleteRecords); err != nil {
		return nil, fmt.Errorf("count complete records: %w", err)
	}

	return &stats, nil
}

// DeleteOlderThan removes records submitted before the cutoff and
// garbage-collects snapshots nothing references anymore.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.builder().
		Delete("outcome_records").
		Where(squirrel.Lt{"submitted_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build record delete: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted records: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (SELECT snapshot_id FROM outcome_records WHERE snapshot_id IS NOT NULL)`,
	); err != nil {
		return 0, fmt.Errorf("delete orphaned snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	return removed, nil
}
