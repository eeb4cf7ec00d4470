package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bidforge/readiness/internal/analysis"
)

// FilterPending selects records still waiting on a decision.
const FilterPending = "pending"

// RecordFilter narrows a record listing. Zero values mean "no constraint".
type RecordFilter struct {
	Outcome  string    `json:"outcome,omitempty"`
	MinScore int       `json:"minScore,omitempty"`
	Since    time.Time `json:"since,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

// StoreStats summarizes the record store for health reporting.
type StoreStats struct {
	TotalRecords    int `json:"totalRecords"`
	CompleteRecords int `json:"completeRecords"`
}

// NewSnapshotRecord creates a tracked record from a submission-time snapshot.
func NewSnapshotRecord(bidID string, snapshot *analysis.BidReadiness, acknowledged bool, submittedAt time.Time) *analysis.OutcomeRecord {
	return &analysis.OutcomeRecord{
		ID:                uuid.New().String(),
		BidID:             bidID,
		Snapshot:          snapshot,
		RisksAcknowledged: acknowledged,
		SubmittedAt:       submittedAt,
	}
}

// NewOutcomeOnlyRecord creates a record for a bid whose decision arrived
// without a stored snapshot. It counts toward totals but is excluded from
// correlation analysis.
func NewOutcomeOnlyRecord(bidID, outcome string, lossReasons []string, decidedAt time.Time) *analysis.OutcomeRecord {
	return &analysis.OutcomeRecord{
		ID:          uuid.New().String(),
		BidID:       bidID,
		Outcome:     outcome,
		LossReasons: lossReasons,
		SubmittedAt: decidedAt,
		DecidedAt:   &decidedAt,
	}
}

// recordRow is the scan target for joined record queries.
type recordRow struct {
	id           string
	bidID        string
	outcome      string
	lossReasons  sql.NullString
	acknowledged bool
	submittedAt  time.Time
	decidedAt    sql.NullTime
	payload      sql.NullString
}

func (row *recordRow) scanTargets() []any {
	return []any{
		&row.id, &row.bidID, &row.outcome, &row.lossReasons,
		&row.acknowledged, &row.submittedAt, &row.decidedAt, &row.payload,
	}
}

func (row *recordRow) toRecord() (*analysis.OutcomeRecord, error) {
	rec := &analysis.OutcomeRecord{
		ID:                row.id,
		BidID:             row.bidID,
		Outcome:           row.outcome,
		RisksAcknowledged: row.acknowledged,
		SubmittedAt:       row.submittedAt,
	}

	if row.decidedAt.Valid {
		decidedAt := row.decidedAt.Time
		rec.DecidedAt = &decidedAt
	}

	if row.payload.Valid {
		var snapshot analysis.BidReadiness
		if err := json.Unmarshal([]byte(row.payload.String), &snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot for record %s: %w", row.id, err)
		}
		rec.Snapshot = &snapshot
	}

	if row.lossReasons.Valid && row.lossReasons.String != "" {
		if err := json.Unmarshal([]byte(row.lossReasons.String), &rec.LossReasons); err != nil {
			return nil, fmt.Errorf("decode loss reasons for record %s: %w", row.id, err)
		}
	}

	return rec, nil
}

// marshalSnapshot encodes the assessment payload for the snapshots table.
func marshalSnapshot(snapshot *analysis.BidReadiness) (string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

// marshalReasons encodes loss-reason tags, or NULL when there are none.
func marshalReasons(reasons []string) (any, error) {
	if len(reasons) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("encode loss reasons: %w", err)
	}
	return string(data), nil
}

// nullableTime converts an optional timestamp into a bindable value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
