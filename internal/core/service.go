package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/utils"
)

// batchConcurrency bounds concurrent items within one batch request.
const batchConcurrency = 3

// precheckConfidence is the minimum rule-engine confidence required to
// short-circuit a danger verdict without the full fan-out.
const precheckConfidence = 0.8

// CredibilityService orchestrates one scoring request end to end:
// cache lookup, fast rule pre-check, parallel predictor fan-out,
// aggregation, cache write, and the degraded fallback when everything
// upstream fails. It is the public entry point of the engine.
type CredibilityService struct {
	gateway         *Gateway
	aggregator      *Aggregator
	rules           *RuleEngine
	cache           VerdictCache
	history         HistoryStore
	logger          *zap.Logger
	cacheEnabled    bool
	cacheTTL        time.Duration
	requestDeadline time.Duration

	mu    sync.Mutex
	stats ServiceStats
}

// NewCredibilityService creates the orchestrator. history may be nil to
// disable persistence.
func NewCredibilityService(
	gateway *Gateway,
	aggregator *Aggregator,
	rules *RuleEngine,
	cache VerdictCache,
	history HistoryStore,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	requestDeadline time.Duration,
) *CredibilityService {
	return &CredibilityService{
		gateway:         gateway,
		aggregator:      aggregator,
		rules:           rules,
		cache:           cache,
		history:         history,
		logger:          logger,
		cacheEnabled:    cacheEnabled,
		cacheTTL:        cacheTTL,
		requestDeadline: requestDeadline,
	}
}

// ScoreContent scores a single sample. The only error it returns is
// ErrEmptyText; every upstream failure is absorbed into a degraded but
// well-formed verdict.
func (s *CredibilityService) ScoreContent(ctx context.Context, text string, behavioral BehavioralSignals) (*EnsembleVerdict, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	started := time.Now()
	fingerprint := utils.Fingerprint(text)

	// Behavioral metadata is excluded from the fingerprint, so repeated
	// viral content hits cache regardless of engagement counters.
	if s.cacheEnabled && s.cache != nil {
		if verdict, ok := s.cache.Get(ctx, fingerprint); ok {
			s.logger.Debug("Cache hit", zap.String("fingerprint", fingerprint[:8]))
			s.recordStats(verdict, time.Since(started), true)
			return verdict, nil
		}
	}

	sample := &ContentSample{
		Text:        text,
		Behavioral:  behavioral,
		SubmittedAt: time.Now(),
	}
	features := ExtractFeatures(text)

	verdict := s.computeVerdict(ctx, sample, features)
	verdict.DetectionID = uuid.NewString()

	if s.cacheEnabled && s.cache != nil {
		if err := s.cache.Set(ctx, fingerprint, verdict, s.cacheTTL); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}
	s.writeHistory(fingerprint, verdict)
	s.recordStats(verdict, time.Since(started), false)

	s.logger.Info("Scoring complete",
		zap.String("detection_id", verdict.DetectionID),
		zap.String("level", string(verdict.Level)),
		zap.Float64("score", verdict.Score),
		zap.Bool("degraded", verdict.Degraded),
		zap.Duration("elapsed", time.Since(started)))

	return verdict, nil
}

// computeVerdict runs the pre-check, fan-out and aggregation stages,
// falling back to the conservative default when zero predictors respond.
func (s *CredibilityService) computeVerdict(ctx context.Context, sample *ContentSample, features FeatureSet) *EnsembleVerdict {
	var precheck *PredictorOutput
	if s.rules != nil {
		precheck = s.rules.Score(sample.Text, features)

		// Clear-cut danger bounds worst-case latency: skip the fan-out
		// entirely. The verdict is marked degraded since not every
		// registered predictor contributed.
		if precheck.Level == RiskDanger && precheck.Confidence >= precheckConfidence {
			if verdict, err := s.aggregator.Aggregate([]*PredictorOutput{precheck}); err == nil {
				s.logger.Debug("Rule pre-check short-circuited fan-out",
					zap.Float64("rule_score", precheck.FeatureScores[FeatureFinancial]))
				return verdict
			}
		}
	}

	fanCtx := ctx
	if s.requestDeadline > 0 {
		var cancel context.CancelFunc
		fanCtx, cancel = context.WithTimeout(ctx, s.requestDeadline)
		defer cancel()
	}

	outputs := s.gateway.FanOut(fanCtx, sample, features, RulePredictorID)
	if precheck != nil && s.rulesRegistered() {
		outputs = append(outputs, precheck)
	}

	verdict, err := s.aggregator.Aggregate(outputs)
	if err != nil {
		s.logger.Warn("Zero predictors responded, returning conservative fallback")
		return s.fallbackVerdict()
	}
	return verdict
}

// ScoreBatch scores several texts with bounded concurrency. Results are
// positionally aligned with the input. Any empty text rejects the whole
// batch before scoring begins.
func (s *CredibilityService) ScoreBatch(ctx context.Context, texts []string, behavioral BehavioralSignals) ([]*EnsembleVerdict, error) {
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	verdicts := make([]*EnsembleVerdict, len(texts))

	var group errgroup.Group
	group.SetLimit(batchConcurrency)
	for i, text := range texts {
		group.Go(func() error {
			v, err := s.ScoreContent(ctx, text, behavioral)
			if err != nil {
				return err
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// fallbackVerdict is the defined degraded default: conservative, clearly
// marked, never a false-positive danger the engine cannot substantiate.
func (s *CredibilityService) fallbackVerdict() *EnsembleVerdict {
	return &EnsembleVerdict{
		Level:       RiskSafe,
		Score:       0,
		Confidence:  0.5,
		Reasons:     []string{"检测服务暂时不可用"},
		Suggestions: []string{"请对内容保持一般性的谨慎"},
		Degraded:    true,
		ComputedAt:  time.Now(),
	}
}

func (s *CredibilityService) rulesRegistered() bool {
	_, ok := s.gateway.Weights()[RulePredictorID]
	return ok
}

// writeHistory persists the verdict off the response path. Failures are
// logged and dropped.
func (s *CredibilityService) writeHistory(fingerprint string, verdict *EnsembleVerdict) {
	if s.history == nil {
		return
	}
	rec := &VerdictRecord{
		DetectionID: verdict.DetectionID,
		Fingerprint: fingerprint,
		Level:       string(verdict.Level),
		Score:       verdict.Score,
		Confidence:  verdict.Confidence,
		Degraded:    verdict.Degraded,
		CreatedAt:   verdict.ComputedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.history.Record(ctx, rec); err != nil {
			s.logger.Error("Failed to record verdict history", zap.Error(err))
		}
	}()
}

func (s *CredibilityService) recordStats(verdict *EnsembleVerdict, elapsed time.Duration, cacheHit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalDetections++
	switch verdict.Level {
	case RiskWarning:
		s.stats.WarningCount++
	case RiskDanger:
		s.stats.DangerCount++
	default:
		s.stats.SafeCount++
	}
	if cacheHit {
		s.stats.CacheHits++
	}
	if verdict.Degraded {
		s.stats.DegradedVerdicts++
	}

	total := s.stats.AvgProcessingTime * float64(s.stats.TotalDetections-1)
	s.stats.AvgProcessingTime = (total + elapsed.Seconds()) / float64(s.stats.TotalDetections)
}

// Stats returns a snapshot of the running counters.
func (s *CredibilityService) Stats() ServiceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// HealthStatus is the result of a service self-probe.
type HealthStatus struct {
	Status     string    `json:"status"`
	ProbeLevel RiskLevel `json:"probe_level"`
	Predictors int       `json:"predictors"`
	Timestamp  time.Time `json:"timestamp"`
}

// HealthCheck scores a fixed probe text and reports engine readiness.
func (s *CredibilityService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "healthy",
		Predictors: len(s.gateway.Registered()),
		Timestamp:  time.Now(),
	}
	verdict, err := s.ScoreContent(ctx, "测试文本", BehavioralSignals{})
	if err != nil {
		status.Status = "error"
		return status
	}
	status.ProbeLevel = verdict.Level
	if verdict.Degraded {
		status.Status = "degraded"
	}
	return status
}
