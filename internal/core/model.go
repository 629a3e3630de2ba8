package core

import (
	"time"
)

// RiskLevel is the categorical verdict for a piece of content.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
)

// Severity maps a risk level to the canonical numeric value used for
// score blending in the ensemble.
func (l RiskLevel) Severity() float64 {
	switch l {
	case RiskDanger:
		return 0.9
	case RiskWarning:
		return 0.6
	default:
		return 0.2
	}
}

// MoreSevere reports whether l outranks other. On an even vote the
// higher-severity level wins.
func (l RiskLevel) MoreSevere(other RiskLevel) bool {
	return l.Severity() > other.Severity()
}

// BehavioralSignals carries optional metadata about how the content was
// published. It never participates in cache fingerprinting.
type BehavioralSignals struct {
	AccountVerified bool
	Tags            []string
	LikeCount       int
	ShareCount      int
	CommentCount    int
}

// ContentSample is a single piece of user-facing text to score.
// Immutable once created.
type ContentSample struct {
	Text        string
	Behavioral  BehavioralSignals
	SubmittedAt time.Time
}

// FeatureSet holds the lexical signals derived from a sample. All fields
// are computed deterministically from the text alone.
type FeatureSet struct {
	Length               int
	ExclamationRuns      int
	URLCount             int
	PhonePatternCount    int
	MoneyMentionCount    int
	ContactSolicitation  bool
	UrgencyWordCount     int
	EmphasisRatio        float64
	SuspiciousReturnRate bool
}

// Canonical feature names shared between the extractor, the rule engine
// and the suggestion mapping.
const (
	FeatureUrgency    = "urgency_language"
	FeatureMoney      = "monetary_promise"
	FeatureContact    = "contact_solicitation"
	FeatureEmphasis   = "punctuation_emphasis"
	FeatureReturnRate = "suspicious_return_rate"
	FeatureURL        = "embedded_url"
	FeatureFinancial  = "financial_fraud"
	FeatureMedical    = "medical_fraud"
	FeatureGeneral    = "general_scam"
)

// Scores flattens the feature set into named scores in [0,1] suitable
// for merging with model-reported feature importance.
func (f FeatureSet) Scores() map[string]float64 {
	scores := map[string]float64{}
	if f.UrgencyWordCount > 0 {
		scores[FeatureUrgency] = clamp01(float64(f.UrgencyWordCount) / 4)
	}
	if f.MoneyMentionCount > 0 {
		scores[FeatureMoney] = clamp01(float64(f.MoneyMentionCount) / 3)
	}
	if f.EmphasisRatio > 0 {
		scores[FeatureEmphasis] = clamp01(f.EmphasisRatio * 5)
	}
	if f.ContactSolicitation {
		scores[FeatureContact] = 1
	}
	if f.SuspiciousReturnRate {
		scores[FeatureReturnRate] = 1
	}
	if f.URLCount > 0 {
		scores[FeatureURL] = clamp01(float64(f.URLCount) / 2)
	}
	return scores
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// PredictorOutput is the normalized verdict from a single predictor.
// Produced once per invocation, never mutated.
type PredictorOutput struct {
	PredictorID   string
	Level         RiskLevel
	Confidence    float64
	Rationale     []string
	FeatureScores map[string]float64
}

// FeatureWeight is one entry of a verdict's top-feature explanation.
type FeatureWeight struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// EnsembleVerdict is the final combined decision for a sample.
type EnsembleVerdict struct {
	DetectionID            string          `json:"detection_id"`
	Level                  RiskLevel       `json:"level"`
	Score                  float64         `json:"score"`
	Confidence             float64         `json:"confidence"`
	Reasons                []string        `json:"reasons"`
	Suggestions            []string        `json:"suggestions"`
	TopFeatures            []FeatureWeight `json:"top_features"`
	ContributingPredictors []string        `json:"contributing_predictors"`
	Degraded               bool            `json:"degraded"`
	ComputedAt             time.Time       `json:"computed_at"`
}

// CacheEntry is a stored verdict keyed by a normalized-text fingerprint.
// Owned exclusively by the verdict cache.
type CacheEntry struct {
	Fingerprint string
	Verdict     EnsembleVerdict
	ExpiresAt   time.Time
}

// VerdictRecord is the persisted history row for one scoring decision.
type VerdictRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DetectionID string    `gorm:"index" json:"detection_id"`
	Fingerprint string    `gorm:"index" json:"fingerprint"`
	Level       string    `json:"level"`
	Score       float64   `json:"score"`
	Confidence  float64   `json:"confidence"`
	Degraded    bool      `json:"degraded"`
	CreatedAt   time.Time `json:"created_at"`
}

// ServiceStats tracks running counters for the scoring service.
type ServiceStats struct {
	TotalDetections   int64   `json:"total_detections"`
	SafeCount         int64   `json:"safe_count"`
	WarningCount      int64   `json:"warning_count"`
	DangerCount       int64   `json:"danger_count"`
	CacheHits         int64   `json:"cache_hits"`
	DegradedVerdicts  int64   `json:"degraded_verdicts"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
}
