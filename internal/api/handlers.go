package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bidforge/readiness/internal/analysis"
	"github.com/bidforge/readiness/internal/calibration"
	apperrors "github.com/bidforge/readiness/internal/errors"
	"github.com/bidforge/readiness/internal/htmltext"
	"github.com/bidforge/readiness/internal/types"
)

// CoverageRequest carries the inputs for one coverage analysis.
type CoverageRequest struct {
	Strategy *types.WinStrategy     `json:"strategy"`
	Sections []types.Section        `json:"sections"`
	Personas *types.PersonaSettings `json:"personas,omitempty"`
}

// ReadinessRequest adds the upstream completeness scores to the coverage
// inputs. Nil scores mean the component was never assessed.
type ReadinessRequest struct {
	CoverageRequest
	FoundationalScore *float64 `json:"foundationalScore"`
	StrategyScore     *float64 `json:"strategyScore"`
}

// SnapshotRequest records the assessment shown to the bid team at
// submission time.
type SnapshotRequest struct {
	BidID             string                 `json:"bidId"`
	Assessment        *analysis.BidReadiness `json:"assessment"`
	RisksAcknowledged bool                   `json:"risksAcknowledged"`
	SubmittedAt       *time.Time             `json:"submittedAt,omitempty"`
}

// OutcomeRequest marks a recorded bid as decided.
type OutcomeRequest struct {
	BidID       string     `json:"bidId"`
	Outcome     string     `json:"outcome"`
	LossReasons []string   `json:"lossReasons,omitempty"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
}

// StageRequest exports one tuning suggestion as a proposed config file.
type StageRequest struct {
	SuggestionID string `json:"suggestionId"`
}

// ApplyRequest carries a reviewed change set for the active config.
type ApplyRequest struct {
	Changes []analysis.ConfigChange `json:"changes"`
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	apperrors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}

func bidID(strategy *types.WinStrategy) string {
	if strategy == nil {
		return ""
	}
	return strategy.BidID
}

func validateScore(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 100) {
		return apperrors.NewValidationError(name + " must be between 0 and 100")
	}
	return nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// handleCoverage godoc
// @Summary Compute rubric coverage
// @Description Maps drafted sections onto the win strategy's evaluation criteria and scores each criterion's coverage.
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body CoverageRequest true "Win strategy, sections and optional persona settings"
// @Success 200 {object} analysis.RubricCoverageResult
// @Failure 400 {object} errors.AppError
// @Router /api/v1/coverage [post]
func (s *Server) handleCoverage(c *gin.Context) {
	start := time.Now()

	var req CoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}

	// Section content arrives as editor rich text; match on plain text.
	sections := htmltext.FlattenSections(req.Sections)
	result := s.coverage.ComputeRubricCoverage(req.Strategy, sections, req.Personas)

	duration := time.Since(start)
	s.metrics.RecordAnalysis("coverage", duration)
	s.logger.AnalysisLogger("coverage", bidID(req.Strategy), result.OverallHealth, len(result.Criteria), duration, false)

	c.JSON(http.StatusOK, result)
}

// handleReadiness godoc
// @Summary Compute bid readiness
// @Description Combines coverage with upstream completeness scores into one assessment using the active scoring config.
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body ReadinessRequest true "Coverage inputs plus foundational and strategy scores (0-100 or null)"
// @Success 200 {object} analysis.BidReadiness
// @Failure 400 {object} errors.AppError
// @Router /api/v1/readiness [post]
func (s *Server) handleReadiness(c *gin.Context) {
	start := time.Now()

	var req ReadinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	if err := validateScore("foundationalScore", req.FoundationalScore); err != nil {
		respondError(c, err)
		return
	}
	if err := validateScore("strategyScore", req.StrategyScore); err != nil {
		respondError(c, err)
		return
	}

	sections := htmltext.FlattenSections(req.Sections)
	coverage := s.coverage.ComputeRubricCoverage(req.Strategy, sections, req.Personas)
	scorer := analysis.NewScorer(s.calibration.Active())
	result := scorer.ComputeBidReadiness(analysis.ReadinessInputs{
		FoundationalScore: req.FoundationalScore,
		StrategyScore:     req.StrategyScore,
		Coverage:          coverage,
		Strategy:          req.Strategy,
		Sections:          sections,
		Personas:          req.Personas,
	})

	duration := time.Since(start)
	s.metrics.RecordAnalysis("readiness", duration)
	s.metrics.RecordReadiness(result.Score, result.Recommendation)
	s.logger.AnalysisLogger("readiness", bidID(req.Strategy), float64(result.Score), len(coverage.Criteria), duration, false)

	c.JSON(http.StatusOK, result)
}

// handleRecordSnapshot godoc
// @Summary Record a submission snapshot
// @Description Stores the readiness assessment a bid was submitted with, for later outcome correlation.
// @Tags records
// @Accept json
// @Produce json
// @Param request body SnapshotRequest true "Bid ID and the assessment shown at submission"
// @Success 201 {object} analysis.OutcomeRecord
// @Failure 400 {object} errors.AppError
// @Router /api/v1/snapshots [post]
func (s *Server) handleRecordSnapshot(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	if req.Assessment == nil {
		respondError(c, apperrors.NewValidationError("assessment is required"))
		return
	}

	rec, err := s.records.RecordSnapshot(c.Request.Context(), req.BidID, *req.Assessment, req.RisksAcknowledged, timeOrZero(req.SubmittedAt))
	if err != nil {
		respondError(c, err)
		return
	}

	s.metrics.SnapshotsRecorded.Inc()
	if s.publisher != nil {
		s.publisher.PublishSnapshotRecorded(rec)
	}

	c.JSON(http.StatusCreated, rec)
}

// handleRecordOutcome godoc
// @Summary Record a bid outcome
// @Description Marks the latest record for a bid as won or lost, with optional loss-reason tags. Creates an outcome-only record when no snapshot exists.
// @Tags records
// @Accept json
// @Produce json
// @Param request body OutcomeRequest true "Bid ID, outcome and optional loss reasons"
// @Success 200 {object} analysis.OutcomeRecord
// @Failure 400 {object} errors.AppError
// @Router /api/v1/outcomes [post]
func (s *Server) handleRecordOutcome(c *gin.Context) {
	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}

	rec, err := s.records.RecordOutcome(c.Request.Context(), req.BidID, req.Outcome, req.LossReasons, timeOrZero(req.DecidedAt))
	if err != nil {
		respondError(c, err)
		return
	}

	s.metrics.RecordOutcome(rec.Outcome)
	if s.publisher != nil {
		s.publisher.PublishOutcomeRecorded(rec)
	}

	c.JSON(http.StatusOK, rec)
}

// handleOutcomeAnalysis godoc
// @Summary Analyze recorded outcomes
// @Description Correlates stored submission snapshots with won/lost outcomes across score bands, recommendations and risk acknowledgement.
// @Tags analysis
// @Produce json
// @Success 200 {object} analysis.OutcomeAnalysisResult
// @Failure 500 {object} errors.AppError
// @Router /api/v1/outcomes/analysis [get]
func (s *Server) handleOutcomeAnalysis(c *gin.Context) {
	start := time.Now()

	records, err := s.records.LoadAllRecords(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	result := analysis.AnalyzeOutcomes(records)
	s.metrics.RecordAnalysis("outcome_analysis", time.Since(start))

	c.JSON(http.StatusOK, result)
}

// handleTuningSuggestions godoc
// @Summary Suggest scoring-config tuning
// @Description Runs the outcome analyzer and derives advisory config changes from the correlation findings. Nothing is applied.
// @Tags tuning
// @Produce json
// @Success 200 {object} analysis.TuningResult
// @Failure 500 {object} errors.AppError
// @Router /api/v1/tuning/suggestions [get]
func (s *Server) handleTuningSuggestions(c *gin.Context) {
	start := time.Now()

	records, err := s.records.LoadAllRecords(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	outcomes := analysis.AnalyzeOutcomes(records)
	result := analysis.SuggestReadinessTuning(outcomes, s.calibration.Active())

	s.metrics.RecordAnalysis("tuning", time.Since(start))
	if s.publisher != nil {
		s.publisher.PublishTuningSuggested(result.Suggestions)
	}

	c.JSON(http.StatusOK, result)
}

// handleStageSuggestion godoc
// @Summary Stage a tuning suggestion
// @Description Writes the config that would result from one current suggestion as a proposed file for human review.
// @Tags tuning
// @Accept json
// @Produce json
// @Param request body StageRequest true "ID of a currently derivable suggestion"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} errors.AppError
// @Router /api/v1/tuning/stage [post]
func (s *Server) handleStageSuggestion(c *gin.Context) {
	var req StageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	if req.SuggestionID == "" {
		respondError(c, apperrors.NewValidationError("suggestionId is required"))
		return
	}

	records, err := s.records.LoadAllRecords(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	outcomes := analysis.AnalyzeOutcomes(records)
	result := analysis.SuggestReadinessTuning(outcomes, s.calibration.Active())

	for _, suggestion := range result.Suggestions {
		if suggestion.ID != req.SuggestionID {
			continue
		}
		path, err := s.calibration.StageProposed(suggestion)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"suggestionId": suggestion.ID,
			"path":         path,
		})
		return
	}

	respondError(c, apperrors.NewNotFoundError("tuning suggestion", req.SuggestionID))
}

// handleGetConfig godoc
// @Summary Active scoring config
// @Tags config
// @Produce json
// @Success 200 {object} analysis.BidReadinessConfig
// @Router /api/v1/config [get]
func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.calibration.Active())
}

// handleValidateConfig godoc
// @Summary Validate a scoring config
// @Description Checks weights, thresholds and penalties of a posted config without touching the active one.
// @Tags config
// @Accept json
// @Produce json
// @Param request body analysis.BidReadinessConfig true "Config to validate"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.AppError
// @Router /api/v1/config/validate [post]
func (s *Server) handleValidateConfig(c *gin.Context) {
	var cfg analysis.BidReadinessConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, err)
		return
	}

	violations := analysis.ValidateConfig(cfg)
	if violations == nil {
		violations = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      len(violations) == 0,
		"violations": violations,
	})
}

// handleDiffConfig godoc
// @Summary Diff against the active config
// @Description Returns the leaf-level changes that would take the active config to the posted one.
// @Tags config
// @Accept json
// @Produce json
// @Param request body analysis.BidReadinessConfig true "Config to compare"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.AppError
// @Router /api/v1/config/diff [post]
func (s *Server) handleDiffConfig(c *gin.Context) {
	var cfg analysis.BidReadinessConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, err)
		return
	}

	changes := analysis.DiffConfigs(s.calibration.Active(), cfg)
	if changes == nil {
		changes = []analysis.ConfigChange{}
	}

	c.JSON(http.StatusOK, gin.H{
		"changes":     changes,
		"changeCount": len(changes),
	})
}

// handleApplyConfig godoc
// @Summary Apply a config change set
// @Description The only write path to the active scoring config. Requires a reviewer token; validates the result before persisting.
// @Tags config
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ApplyRequest true "Reviewed change set"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.AppError
// @Failure 401 {object} errors.AppError
// @Router /api/v1/config/apply [post]
func (s *Server) handleApplyConfig(c *gin.Context) {
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	if len(req.Changes) == 0 {
		respondError(c, apperrors.NewValidationError("changes are required"))
		return
	}

	cfg, err := s.calibration.Apply(req.Changes)
	if err != nil {
		if errors.Is(err, calibration.ErrInvalidConfig) {
			respondError(c, apperrors.NewValidationError(err.Error()))
		} else {
			respondError(c, apperrors.NewConfigurationError("failed to apply config changes", err))
		}
		return
	}

	s.metrics.ConfigApplies.Inc()
	s.metrics.SetConfigVersion(cfg.Version)
	s.logger.ConfigLogger("config_applied", cfg.Version, len(req.Changes))
	if s.publisher != nil {
		s.publisher.PublishConfigApplied(cfg.Version, len(req.Changes))
	}

	c.JSON(http.StatusOK, gin.H{
		"config":      cfg,
		"appliedBy":   c.GetString("reviewer"),
		"changeCount": len(req.Changes),
	})
}
