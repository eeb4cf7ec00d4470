package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidforge/readiness/internal/analysis"
	"github.com/bidforge/readiness/internal/calibration"
	"github.com/bidforge/readiness/internal/database"
	"github.com/bidforge/readiness/internal/types"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir, err := os.MkdirTemp("", "api_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := calibration.NewStore(dir+"/calibration", nil)
	require.NoError(t, err)

	db, err := database.NewSQLite(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := NewServer(Deps{
		Calibration: store,
		Records:     database.NewRecordService(database.NewRepository(db), nil),
		DB:          db,
		Auth:        NewReviewerAuth("test-secret", time.Hour),
	})
	return srv, srv.Router()
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doRaw(t *testing.T, r *gin.Engine, method, path, raw string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleStrategy() *types.WinStrategy {
	return &types.WinStrategy{
		ID:    "ws-1",
		BidID: "bid-100",
		Criteria: []types.EvaluationCriterion{
			{ID: "c-tech", Label: "Technical approach", Weight: 0.6, SuggestedSections: []string{"technical"}},
			{ID: "c-price", Label: "Commercial", Weight: 0.4, SuggestedSections: []string{"pricing"}},
		},
		WinThemes: []string{"proven delivery"},
		ProofPlan: []types.ProofItem{{ID: "p-1", Title: "Framework case study", Priority: 1}},
	}
}

func sampleSections() []types.Section {
	return []types.Section{
		{
			Key:            "technical",
			Status:         types.SectionStatusDrafted,
			Content:        "Our technical approach builds on proven delivery for similar frameworks.",
			HasWinStrategy: true,
			AppliedThemes:  []string{"proven delivery"},
			AppliedProof:   []string{"p-1"},
		},
		{
			Key:            "pricing",
			Status:         types.SectionStatusDrafted,
			Content:        "Commercial model and pricing schedule.",
			HasWinStrategy: true,
		},
	}
}

func sampleAssessment(score int) *analysis.BidReadiness {
	rec := analysis.RecommendationConditional
	if score >= 70 {
		rec = analysis.RecommendationGo
	}
	return &analysis.BidReadiness{
		Score:          score,
		Recommendation: rec,
		Reasons:        []string{"test assessment"},
		Breakdown: analysis.ComponentScores{
			Foundational: 80, Strategy: 70, Coverage: 75, Proof: 60, Persona: 75,
		},
		IsReliableAssessment: true,
		ConfigVersion:        "1.0.0",
		GeneratedAt:          time.Now().UTC(),
	}
}

func TestCoverageEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/coverage", CoverageRequest{
		Strategy: sampleStrategy(),
		Sections: sampleSections(),
	}, "")

	require.Equal(t, http.StatusOK, w.Code)

	var result analysis.RubricCoverageResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Criteria, 2)
	assert.Len(t, result.Sections, 2)
	assert.Greater(t, result.OverallHealth, 0.0)
	assert.False(t, result.GeneratedAt.IsZero())
}

func TestCoverageRejectsMalformedJSON(t *testing.T) {
	_, r := newTestServer(t)

	w := doRaw(t, r, http.MethodPost, "/api/v1/coverage", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCoverageFlattensRichTextSections(t *testing.T) {
	_, r := newTestServer(t)

	plain := doJSON(t, r, http.MethodPost, "/api/v1/coverage", CoverageRequest{
		Strategy: sampleStrategy(),
		Sections: sampleSections(),
	}, "")
	require.Equal(t, http.StatusOK, plain.Code)

	rich := sampleSections()
	rich[0].Content = "<p>Our technical approach builds on <strong>proven delivery</strong> for similar frameworks.</p>"

	marked := doJSON(t, r, http.MethodPost, "/api/v1/coverage", CoverageRequest{
		Strategy: sampleStrategy(),
		Sections: rich,
	}, "")
	require.Equal(t, http.StatusOK, marked.Code)

	var plainResult, richResult analysis.RubricCoverageResult
	require.NoError(t, json.Unmarshal(plain.Body.Bytes(), &plainResult))
	require.NoError(t, json.Unmarshal(marked.Body.Bytes(), &richResult))

	// Editor markup must not change what the analyzer sees.
	assert.Equal(t, plainResult.OverallHealth, richResult.OverallHealth)
	assert.Equal(t, plainResult.Criteria, richResult.Criteria)
}

func TestReadinessEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	foundational := 80.0
	strategy := 70.0
	w := doJSON(t, r, http.MethodPost, "/api/v1/readiness", ReadinessRequest{
		CoverageRequest: CoverageRequest{
			Strategy: sampleStrategy(),
			Sections: sampleSections(),
		},
		FoundationalScore: &foundational,
		StrategyScore:     &strategy,
	}, "")

	require.Equal(t, http.StatusOK, w.Code)

	var result analysis.BidReadiness
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Greater(t, result.Score, 0)
	assert.LessOrEqual(t, result.Score, 100)
	assert.Contains(t, []string{
		analysis.RecommendationGo,
		analysis.RecommendationConditional,
		analysis.RecommendationNoGo,
	}, result.Recommendation)
	assert.Equal(t, "1.0.0", result.ConfigVersion)
	assert.True(t, result.IsReliableAssessment)
}

func TestReadinessRejectsOutOfRangeScore(t *testing.T) {
	_, r := newTestServer(t)

	bad := 150.0
	w := doJSON(t, r, http.MethodPost, "/api/v1/readiness", ReadinessRequest{
		FoundationalScore: &bad,
	}, "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "between 0 and 100")
}

func TestSnapshotThenOutcomeFlow(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/snapshots", SnapshotRequest{
		BidID:             "bid-100",
		Assessment:        sampleAssessment(76),
		RisksAcknowledged: true,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var rec analysis.OutcomeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "bid-100", rec.BidID)
	require.NotNil(t, rec.Snapshot)
	assert.Equal(t, 76, rec.Snapshot.Score)

	w = doJSON(t, r, http.MethodPost, "/api/v1/outcomes", OutcomeRequest{
		BidID:   "bid-100",
		Outcome: "won",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var decided analysis.OutcomeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decided))
	assert.Equal(t, rec.ID, decided.ID)
	assert.Equal(t, analysis.OutcomeWon, decided.Outcome)

	w = doJSON(t, r, http.MethodGet, "/api/v1/outcomes/analysis", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var result analysis.OutcomeAnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.TotalRecords)
	assert.Equal(t, 1, result.CompleteRecords)
}

func TestSnapshotRequiresAssessment(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/snapshots", SnapshotRequest{BidID: "bid-1"}, "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "assessment is required")
}

func TestOutcomeRejectsUnknownState(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/outcomes", OutcomeRequest{
		BidID:   "bid-1",
		Outcome: "maybe",
	}, "")

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTuningSuggestionsOnEmptyStore(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/tuning/suggestions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var result analysis.TuningResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Empty(t, result.Suggestions)
	assert.NotEmpty(t, result.Message)
}

func TestStageSuggestionNotFound(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/tuning/stage", StageRequest{SuggestionID: "raise-go-threshold"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetConfig(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/config", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var cfg analysis.BidReadinessConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.InDelta(t, 0.25, cfg.Weights.Coverage, 1e-9)
}

func TestValidateConfigEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/config/validate", analysis.DefaultConfig(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)

	broken := analysis.DefaultConfig()
	broken.Weights.Coverage = 0.9

	w = doJSON(t, r, http.MethodPost, "/api/v1/config/validate", broken, "")
	require.Equal(t, http.StatusOK, w.Code)

	var verdict struct {
		Valid      bool     `json:"valid"`
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verdict))
	assert.False(t, verdict.Valid)
	assert.NotEmpty(t, verdict.Violations)
}

func TestDiffConfigEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	modified := analysis.DefaultConfig()
	modified.Thresholds.Go = 75

	w := doJSON(t, r, http.MethodPost, "/api/v1/config/diff", modified, "")
	require.Equal(t, http.StatusOK, w.Code)

	var diff struct {
		Changes     []analysis.ConfigChange `json:"changes"`
		ChangeCount int                     `json:"changeCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diff))
	require.Equal(t, 1, diff.ChangeCount)
	assert.Equal(t, "thresholds.go", diff.Changes[0].Path)
}

func TestApplyConfigRequiresReviewerToken(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/config/apply", ApplyRequest{
		Changes: []analysis.ConfigChange{{Path: "thresholds.go", To: 75}},
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApplyConfigWithReviewerToken(t *testing.T) {
	srv, r := newTestServer(t)

	token, err := srv.auth.GenerateToken("reviewer-1")
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/v1/config/apply", ApplyRequest{
		Changes: []analysis.ConfigChange{{Path: "thresholds.go", To: 75.0}},
	}, token)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Config      analysis.BidReadinessConfig `json:"config"`
		AppliedBy   string                      `json:"appliedBy"`
		ChangeCount int                         `json:"changeCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "reviewer-1", resp.AppliedBy)
	assert.Equal(t, 1, resp.ChangeCount)
	assert.InDelta(t, 75.0, resp.Config.Thresholds.Go, 1e-9)
	assert.Equal(t, "1.0.1", resp.Config.Version)

	// The active config now reflects the apply.
	w = doJSON(t, r, http.MethodGet, "/api/v1/config", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.0.1"`)
}

func TestApplyConfigRejectsEmptyChangeSet(t *testing.T) {
	srv, r := newTestServer(t)

	token, err := srv.auth.GenerateToken("reviewer-1")
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/v1/config/apply", ApplyRequest{}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "changes are required")
}

func TestApplyConfigRejectsInvalidResult(t *testing.T) {
	srv, r := newTestServer(t)

	token, err := srv.auth.GenerateToken("reviewer-1")
	require.NoError(t, err)

	// Pushing one weight far out of balance makes the result invalid.
	w := doJSON(t, r, http.MethodPost, "/api/v1/config/apply", ApplyRequest{
		Changes: []analysis.ConfigChange{{Path: "weights.coverage", To: 0.9}},
	}, token)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid config")

	active := doJSON(t, r, http.MethodGet, "/api/v1/config", nil, "")
	assert.Contains(t, active.Body.String(), `"version":"1.0.0"`)
}

func TestHealthEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"config_version":"1.0.0"`)
}

func TestUnsupportedContentTypeRejected(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/coverage", strings.NewReader("strategy=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}
