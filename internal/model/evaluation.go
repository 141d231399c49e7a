package model

import "time"

// Verdict is the outcome of one audit criterion.
type Verdict string

const (
	VerdictPass          Verdict = "PASS"
	VerdictPartial       Verdict = "PARTIAL"
	VerdictFail          Verdict = "FAIL"
	VerdictNotApplicable Verdict = "N/A"
)

// Criterion is one item of the audit rubric sent to the evaluator.
type Criterion struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Dimension   string `json:"dimension,omitempty" yaml:"dimension"`
}

// CriterionResult is the evaluator's verdict for one criterion.
type CriterionResult struct {
	ID             string  `json:"id"`
	Result         Verdict `json:"result"`
	Score          float64 `json:"score"`
	Explanation    string  `json:"explanation,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// Evaluation is the structured audit returned by the evaluator and stored
// in the cache. Sub-scores are optional; the overall score is not.
type Evaluation struct {
	OverallScore        float64           `json:"overall_score"`
	CommunicationScore  *float64          `json:"communication_score,omitempty"`
	ComplianceScore     *float64          `json:"compliance_score,omitempty"`
	AccuracyScore       *float64          `json:"accuracy_score,omitempty"`
	ToneScore           *float64          `json:"tone_score,omitempty"`
	EmpathyScore        *float64          `json:"empathy_score,omitempty"`
	ResolutionScore     *float64          `json:"resolution_score,omitempty"`
	Summary             string            `json:"summary"`
	Strengths           []string          `json:"strengths"`
	AreasForImprovement []string          `json:"areas_for_improvement"`
	Recommendations     []string          `json:"recommendations"`
	Criteria            []CriterionResult `json:"criteria"`
}

// CacheEntry is a stored evaluation keyed by transcript fingerprint.
type CacheEntry struct {
	Fingerprint string     `json:"transcript_hash"`
	Result      Evaluation `json:"audit_result"`
	Provider    string     `json:"ai_provider"`
	Model       string     `json:"ai_model"`
	HitCount    int        `json:"hit_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScoredCall is an evaluation tagged with the call it belongs to.
type ScoredCall struct {
	CallRowID   string     `json:"call_db_id"`
	CallID      string     `json:"call_id"`
	UserID      string     `json:"user_id"`
	Fingerprint string     `json:"fingerprint"`
	Provider    string     `json:"ai_provider"`
	Model       string     `json:"ai_model"`
	FromCache   bool       `json:"from_cache"`
	Result      Evaluation `json:"result"`
}

// ReportRecord is the persisted report card for one audited call.
type ReportRecord struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	CallRowID           string            `json:"call_id"`
	SourceFile          string            `json:"source_file"`
	SourceType          string            `json:"source_type"`
	OverallScore        float64           `json:"overall_score"`
	CommunicationScore  *float64          `json:"communication_score,omitempty"`
	ComplianceScore     *float64          `json:"compliance_score,omitempty"`
	AccuracyScore       *float64          `json:"accuracy_score,omitempty"`
	ToneScore           *float64          `json:"tone_score,omitempty"`
	EmpathyScore        *float64          `json:"empathy_score,omitempty"`
	ResolutionScore     *float64          `json:"resolution_score,omitempty"`
	Feedback            string            `json:"feedback"`
	Strengths           []string          `json:"strengths"`
	AreasForImprovement []string          `json:"areas_for_improvement"`
	Recommendations     []string          `json:"recommendations"`
	CriteriaResults     []CriterionResult `json:"criteria_results"`
	AIProvider          string            `json:"ai_provider"`
	AIModel             string            `json:"ai_model"`
	FromCache           bool              `json:"from_cache"`
	CreatedAt           time.Time         `json:"created_at"`
}

// NewReportRecord builds the report card for a scored call.
func NewReportRecord(sc ScoredCall) ReportRecord {
	r := sc.Result
	source := sc.CallID
	if source == "" {
		source = "synced_call"
	}
	return ReportRecord{
		UserID:              sc.UserID,
		CallRowID:           sc.CallRowID,
		SourceFile:          source,
		SourceType:          "call",
		OverallScore:        r.OverallScore,
		CommunicationScore:  r.CommunicationScore,
		ComplianceScore:     r.ComplianceScore,
		AccuracyScore:       r.AccuracyScore,
		ToneScore:           r.ToneScore,
		EmpathyScore:        r.EmpathyScore,
		ResolutionScore:     r.ResolutionScore,
		Feedback:            r.Summary,
		Strengths:           r.Strengths,
		AreasForImprovement: r.AreasForImprovement,
		Recommendations:     r.Recommendations,
		CriteriaResults:     r.Criteria,
		AIProvider:          sc.Provider,
		AIModel:             sc.Model,
		FromCache:           sc.FromCache,
	}
}
