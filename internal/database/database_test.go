package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidforge/readiness/internal/analysis"
)

func newTestService(t *testing.T) (*DB, *RecordService) {
	t.Helper()

	dir, err := os.MkdirTemp("", "database_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := NewSQLite(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, NewRecordService(NewRepository(db), nil)
}

func sampleSnapshot(score int) analysis.BidReadiness {
	return analysis.BidReadiness{
		Score:          score,
		Recommendation: analysis.RecommendationGo,
		Reasons:        []string{"Overall readiness meets the go threshold"},
		Risks: []analysis.Risk{{
			Component:   analysis.ComponentCoverage,
			CriterionID: "c-1",
			Severity:    analysis.SeverityHigh,
			Summary:     "Low coverage on a heavily weighted criterion",
			Mitigation:  "Draft a win strategy for the criterion",
		}},
		Fixes: []analysis.Fix{{
			Area:     "coverage",
			Priority: 2,
			Lift:     8,
			Action:   "Add win strategies for uncovered criteria",
		}},
		Breakdown: analysis.ComponentScores{
			Foundational: 90, Strategy: 80, Coverage: 75, Proof: 60, Persona: 75,
		},
		IsReliableAssessment: true,
		ConfigVersion:        "1.0.0",
		GeneratedAt:          time.Now().UTC(),
	}
}

func TestRecordSnapshotRoundTrip(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	submittedAt := time.Now().UTC().Add(-time.Hour)
	rec, err := svc.RecordSnapshot(ctx, "bid-1", sampleSnapshot(80), true, submittedAt)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	loaded, err := svc.GetRecord(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, "bid-1", loaded.BidID)
	assert.True(t, loaded.RisksAcknowledged)
	assert.WithinDuration(t, submittedAt, loaded.SubmittedAt, time.Second)
	assert.Empty(t, loaded.Outcome)
	assert.Nil(t, loaded.DecidedAt)
	assert.False(t, loaded.IsComplete())

	require.NotNil(t, loaded.Snapshot)
	assert.Equal(t, 80, loaded.Snapshot.Score)
	assert.Equal(t, analysis.RecommendationGo, loaded.Snapshot.Recommendation)
	assert.Equal(t, "1.0.0", loaded.Snapshot.ConfigVersion)
	require.Len(t, loaded.Snapshot.Risks, 1)
	assert.Equal(t, "c-1", loaded.Snapshot.Risks[0].CriterionID)
	require.Len(t, loaded.Snapshot.Fixes, 1)
	assert.Equal(t, 8, loaded.Snapshot.Fixes[0].Lift)
	assert.InDelta(t, 75.0, loaded.Snapshot.Breakdown.Coverage, 0.001)
}

func TestRecordSnapshotRequiresBidID(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.RecordSnapshot(context.Background(), "  ", sampleSnapshot(70), false, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bidId is required")
}

func TestRecordOutcomeCompletesLatestRecord(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordSnapshot(ctx, "bid-1", sampleSnapshot(72), false, time.Time{})
	require.NoError(t, err)

	rec, err := svc.RecordOutcome(ctx, "bid-1", "WON ", []string{"ignored for wins"}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, analysis.OutcomeWon, rec.Outcome)
	assert.Nil(t, rec.LossReasons)
	require.NotNil(t, rec.DecidedAt)
	assert.True(t, rec.IsComplete())

	loaded, err := svc.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsComplete())
	require.NotNil(t, loaded.Snapshot)
	assert.Equal(t, 72, loaded.Snapshot.Score)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRecords)
	assert.Equal(t, 1, stats.CompleteRecords)
}

func TestRecordOutcomeWithoutSnapshot(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	rec, err := svc.RecordOutcome(ctx, "bid-9", analysis.OutcomeLost, []string{" price ", "", "incumbent"}, time.Time{})
	require.NoError(t, err)

	assert.Nil(t, rec.Snapshot)
	assert.Equal(t, []string{"price", "incumbent"}, rec.LossReasons)
	assert.False(t, rec.IsComplete())

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRecords)
	assert.Equal(t, 0, stats.CompleteRecords)
}

func TestRecordOutcomeRejectsUnknownOutcome(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.RecordOutcome(context.Background(), "bid-1", "maybe", nil, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outcome must be")
}

func TestRecordOutcomeOverwritesPreviousDecision(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordSnapshot(ctx, "bid-1", sampleSnapshot(65), false, time.Time{})
	require.NoError(t, err)

	first, err := svc.RecordOutcome(ctx, "bid-1", analysis.OutcomeLost, []string{"price"}, time.Time{})
	require.NoError(t, err)

	second, err := svc.RecordOutcome(ctx, "bid-1", analysis.OutcomeWon, nil, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	loaded, err := svc.GetRecord(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.OutcomeWon, loaded.Outcome)
	assert.Nil(t, loaded.LossReasons)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRecords)
}

func TestGetRecordNotFound(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.GetRecord(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRecordsFilters(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recA, err := svc.RecordSnapshot(ctx, "bid-a", sampleSnapshot(80), false, now.Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = svc.RecordOutcome(ctx, "bid-a", analysis.OutcomeWon, nil, now.Add(-24*time.Hour))
	require.NoError(t, err)

	recB, err := svc.RecordSnapshot(ctx, "bid-b", sampleSnapshot(55), false, now.Add(-24*time.Hour))
	require.NoError(t, err)
	_, err = svc.RecordOutcome(ctx, "bid-b", analysis.OutcomeLost, []string{"price"}, now.Add(-2*time.Hour))
	require.NoError(t, err)

	recC, err := svc.RecordSnapshot(ctx, "bid-c", sampleSnapshot(90), false, now)
	require.NoError(t, err)

	ids := func(records []analysis.OutcomeRecord) []string {
		out := make([]string, 0, len(records))
		for _, rec := range records {
			out = append(out, rec.ID)
		}
		return out
	}

	all, err := svc.ListRecords(ctx, RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{recC.ID, recB.ID, recA.ID}, ids(all))

	won, err := svc.ListRecords(ctx, RecordFilter{Outcome: analysis.OutcomeWon})
	require.NoError(t, err)
	assert.Equal(t, []string{recA.ID}, ids(won))

	pending, err := svc.ListRecords(ctx, RecordFilter{Outcome: FilterPending})
	require.NoError(t, err)
	assert.Equal(t, []string{recC.ID}, ids(pending))

	highScoring, err := svc.ListRecords(ctx, RecordFilter{MinScore: 60})
	require.NoError(t, err)
	assert.Equal(t, []string{recC.ID, recA.ID}, ids(highScoring))

	recent, err := svc.ListRecords(ctx, RecordFilter{Since: now.Add(-30 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{recC.ID, recB.ID}, ids(recent))

	limited, err := svc.ListRecords(ctx, RecordFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{recC.ID, recB.ID}, ids(limited))

	_, err = svc.ListRecords(ctx, RecordFilter{Outcome: "maybe"})
	require.Error(t, err)
}

func TestPruneOlderThan(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := svc.RecordSnapshot(ctx, "bid-old", sampleSnapshot(60), false, now.Add(-100*24*time.Hour))
	require.NoError(t, err)
	kept, err := svc.RecordSnapshot(ctx, "bid-new", sampleSnapshot(70), false, now)
	require.NoError(t, err)

	removed, err := svc.PruneOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	records, err := svc.ListRecords(ctx, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, kept.ID, records[0].ID)

	// Orphaned snapshots are garbage-collected with their records.
	var snapshotCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&snapshotCount))
	assert.Equal(t, 1, snapshotCount)

	_, err = svc.PruneOlderThan(ctx, 0)
	require.Error(t, err)
}

func TestLoadAllRecordsFeedsOutcomeAnalysis(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		bidID := string(rune('a' + i))
		_, err := svc.RecordSnapshot(ctx, "bid-"+bidID, sampleSnapshot(70+i), false, time.Time{})
		require.NoError(t, err)
		_, err = svc.RecordOutcome(ctx, "bid-"+bidID, analysis.OutcomeWon, nil, time.Time{})
		require.NoError(t, err)
	}

	records, err := svc.LoadAllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := range records {
		assert.True(t, records[i].IsComplete())
	}
}
