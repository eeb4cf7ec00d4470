package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	// minimum bucket size before a correlation is worth reporting
	minBucketSize = 3
	// minimum complete records before the whole analysis means anything
	minMeaningfulRecords = 5

	highConfidenceSample   = 20
	mediumConfidenceSample = 10

	advisoryDelta = 10
	strongDelta   = 20

	// the score bucket used when asking whether readiness predicts wins
	predictiveThreshold = 70
)

// scoreBuckets is the fixed threshold grid for score correlation. It is an
// analysis grid, not a tunable: insights over a stable grid stay comparable
// across config versions.
var scoreBuckets = []int{50, 60, 70, 80}

// Bucket signal identifiers. Kept machine-stable so downstream consumers
// (and the tuning advisor) can match on them.
const (
	SignalRisksAcknowledged = "risks=acknowledged"
	SignalRisksNone         = "risks=none"
	SignalRisksCritical     = "risks=critical"
)

func scoreSignal(threshold int, above bool) string {
	if above {
		return fmt.Sprintf("score>=%d", threshold)
	}
	return fmt.Sprintf("score<%d", threshold)
}

func recommendationSignal(rec string) string {
	return "recommendation=" + rec
}

// AnalyzeOutcomes batch-correlates historical outcome records against what
// the scorer predicted at submission time. The pass is a full recompute
// over an in-memory snapshot; expected volume is low thousands of records.
func AnalyzeOutcomes(records []OutcomeRecord) *OutcomeAnalysisResult {
	result := &OutcomeAnalysisResult{
		TotalRecords:           len(records),
		ScoreInsights:          []OutcomeInsight{},
		RecommendationInsights: []OutcomeInsight{},
		RiskInsights:           []OutcomeInsight{},
		LossReasons:            []LossReasonStat{},
		GeneratedAt:            time.Now().UTC(),
	}

	var complete []OutcomeRecord
	for _, r := range records {
		if r.IsComplete() {
			complete = append(complete, r)
		}
	}
	result.CompleteRecords = len(complete)
	result.IsStatisticallyMeaningful = len(complete) >= minMeaningfulRecords
	if !result.IsStatisticallyMeaningful {
		result.Message = fmt.Sprintf("insufficient data: %d complete outcome records, %d required for meaningful analysis",
			len(complete), minMeaningfulRecords)
	}
	if len(complete) == 0 {
		return result
	}

	result.BaselineWinRate = winRate(complete)

	for _, threshold := range scoreBuckets {
		var above, below []OutcomeRecord
		for _, r := range complete {
			if r.Snapshot.Score >= threshold {
				above = append(above, r)
			} else {
				below = append(below, r)
			}
		}
		appendInsight(&result.ScoreInsights, scoreSignal(threshold, true), above, result.BaselineWinRate)
		appendInsight(&result.ScoreInsights, scoreSignal(threshold, false), below, result.BaselineWinRate)
	}

	for _, rec := range []string{RecommendationGo, RecommendationConditional, RecommendationNoGo} {
		var bucket []OutcomeRecord
		for _, r := range complete {
			if r.Snapshot.Recommendation == rec {
				bucket = append(bucket, r)
			}
		}
		appendInsight(&result.RecommendationInsights, recommendationSignal(rec), bucket, result.BaselineWinRate)
	}

	var acknowledged, clean, critical []OutcomeRecord
	for _, r := range complete {
		switch {
		case len(r.Snapshot.Risks) == 0:
			clean = append(clean, r)
		case r.RisksAcknowledged:
			acknowledged = append(acknowledged, r)
		}
		if r.Snapshot.HasCriticalRisk() {
			critical = append(critical, r)
		}
	}
	appendInsight(&result.RiskInsights, SignalRisksAcknowledged, acknowledged, result.BaselineWinRate)
	appendInsight(&result.RiskInsights, SignalRisksNone, clean, result.BaselineWinRate)
	appendInsight(&result.RiskInsights, SignalRisksCritical, critical, result.BaselineWinRate)

	result.LossReasons = lossReasonStats(complete)
	return result
}

func winRate(records []OutcomeRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	won := 0
	for _, r := range records {
		if r.Outcome == OutcomeWon {
			won++
		}
	}
	return math.Round(float64(won) / float64(len(records)) * 100)
}

func appendInsight(insights *[]OutcomeInsight, signal string, bucket []OutcomeRecord, baseline float64) {
	if len(bucket) < minBucketSize {
		return
	}
	delta := winRate(bucket) - baseline
	insight := OutcomeInsight{
		Signal:       signal,
		WinRateDelta: delta,
		SampleSize:   len(bucket),
		Confidence:   confidenceForSample(len(bucket)),
	}
	if math.Abs(delta) >= advisoryDelta {
		insight.Recommendation = advisory(signal, delta)
	}
	*insights = append(*insights, insight)
}

func confidenceForSample(n int) string {
	switch {
	case n >= highConfidenceSample:
		return ConfidenceHigh
	case n >= mediumConfidenceSample:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

func advisory(signal string, delta float64) string {
	direction := "above"
	if delta < 0 {
		direction = "below"
	}
	if math.Abs(delta) >= strongDelta {
		return fmt.Sprintf("strong signal: bids matching %s win %.0f points %s baseline; weigh this heavily in bid/no-bid calls", signal, math.Abs(delta), direction)
	}
	return fmt.Sprintf("bids matching %s win %.0f points %s baseline; worth factoring into bid/no-bid calls", signal, math.Abs(delta), direction)
}

func lossReasonStats(complete []OutcomeRecord) []LossReasonStat {
	type agg struct {
		count    int
		scoreSum float64
	}
	var losses int
	tags := make(map[string]*agg)
	for _, r := range complete {
		if r.Outcome != OutcomeLost {
			continue
		}
		losses++
		for _, tag := range r.LossReasons {
			key := strings.ToLower(strings.TrimSpace(tag))
			if key == "" {
				continue
			}
			a := tags[key]
			if a == nil {
				a = &agg{}
				tags[key] = a
			}
			a.count++
			a.scoreSum += float64(r.Snapshot.Score)
		}
	}
	if losses == 0 || len(tags) == 0 {
		return []LossReasonStat{}
	}
	stats := make([]LossReasonStat, 0, len(tags))
	for tag, a := range tags {
		stats = append(stats, LossReasonStat{
			Tag:          tag,
			Count:        a.count,
			Percentage:   math.Round(float64(a.count) / float64(losses) * 100),
			AvgReadiness: round2(a.scoreSum / float64(a.count)),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Tag < stats[j].Tag
	})
	return stats
}

// TopInsights filters for findings solid enough to surface by default:
// anything above low confidence, or a low-confidence delta too large to
// hide.
func (r *OutcomeAnalysisResult) TopInsights() []OutcomeInsight {
	var top []OutcomeInsight
	for _, group := range [][]OutcomeInsight{r.ScoreInsights, r.RecommendationInsights, r.RiskInsights} {
		for _, ins := range group {
			if ins.Confidence != ConfidenceLow || math.Abs(ins.WinRateDelta) >= strongDelta {
				top = append(top, ins)
			}
		}
	}
	return top
}

// IsReadinessPredictive reports whether high readiness actually precedes
// wins: the >=70 score bucket or the GO-recommendation bucket beating
// baseline by 10+ points.
func (r *OutcomeAnalysisResult) IsReadinessPredictive() bool {
	target := scoreSignal(predictiveThreshold, true)
	for _, ins := range r.ScoreInsights {
		if ins.Signal == target && ins.WinRateDelta >= advisoryDelta {
			return true
		}
	}
	for _, ins := range r.RecommendationInsights {
		if ins.Signal == recommendationSignal(RecommendationGo) && ins.WinRateDelta >= advisoryDelta {
			return true
		}
	}
	return false
}

// Summary is a one-line natural-language status for dashboards and logs.
func (r *OutcomeAnalysisResult) Summary() string {
	if !r.IsStatisticallyMeaningful {
		return fmt.Sprintf("insufficient outcome data: %d of %d required complete records", r.CompleteRecords, minMeaningfulRecords)
	}
	if r.IsReadinessPredictive() {
		return fmt.Sprintf("readiness is predictive: baseline win rate %.0f%% across %d complete records, %d notable insights",
			r.BaselineWinRate, r.CompleteRecords, len(r.TopInsights()))
	}
	return fmt.Sprintf("no strong readiness signal yet: baseline win rate %.0f%% across %d complete records",
		r.BaselineWinRate, r.CompleteRecords)
}
