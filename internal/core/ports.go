package core

import (
	"context"
	"time"
)

// Predictor maps a content sample to a risk verdict. Implementations may
// be rule-based or model-backed; the gateway treats them uniformly.
type Predictor interface {
	// ID returns the stable predictor identifier used for weighting.
	ID() string

	// Predict scores a sample. The features are precomputed by the
	// service so model-backed predictors can include them in prompts.
	Predict(ctx context.Context, sample *ContentSample, features FeatureSet) (*PredictorOutput, error)
}

// VerdictCache stores computed verdicts keyed by normalized-text
// fingerprint. Implementations must be safe for concurrent use.
type VerdictCache interface {
	// Get retrieves a non-expired verdict for a fingerprint.
	Get(ctx context.Context, fingerprint string) (*EnsembleVerdict, bool)

	// Set stores a verdict with the given TTL.
	Set(ctx context.Context, fingerprint string, verdict *EnsembleVerdict, ttl time.Duration) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}

// HistoryStore persists verdicts for later review. Writes happen off the
// response path; failures are logged and dropped.
type HistoryStore interface {
	// Record stores one verdict.
	Record(ctx context.Context, rec *VerdictRecord) error

	// Recent returns the most recent records, newest first.
	Recent(ctx context.Context, limit, offset int) ([]VerdictRecord, error)
}
