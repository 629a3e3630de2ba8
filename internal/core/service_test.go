package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCache is a minimal in-memory VerdictCache for service tests.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*EnsembleVerdict
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*EnsembleVerdict{}}
}

func (c *fakeCache) Get(_ context.Context, fingerprint string) (*EnsembleVerdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[fingerprint]
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, fingerprint string, verdict *EnsembleVerdict, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = verdict
	c.sets++
	return nil
}

func (c *fakeCache) Cleanup(_ context.Context) error { return nil }

// countingPredictor records how many times it was invoked.
type countingPredictor struct {
	fakePredictor
	mu    sync.Mutex
	calls int
}

func (p *countingPredictor) Predict(ctx context.Context, sample *ContentSample, features FeatureSet) (*PredictorOutput, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.fakePredictor.Predict(ctx, sample, features)
}

func (p *countingPredictor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newService(registry []RegisteredPredictor, rules *RuleEngine, cache VerdictCache) *CredibilityService {
	gateway := NewGateway(registry, zap.NewNop())
	aggregator := NewAggregator(gateway.Weights())
	return NewCredibilityService(
		gateway, aggregator, rules, cache, nil, zap.NewNop(),
		cache != nil, 5*time.Minute, 2*time.Second,
	)
}

func TestScoreContentRejectsEmptyText(t *testing.T) {
	svc := newService(nil, NewRuleEngine(DefaultRuleWeights()), nil)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := svc.ScoreContent(context.Background(), text, BehavioralSignals{})
		assert.ErrorIs(t, err, ErrEmptyText)
	}
}

func TestScoreContentCachesVerdictVerbatim(t *testing.T) {
	pred := &countingPredictor{fakePredictor: fakePredictor{id: "a", out: okOutput("a", RiskWarning)}}
	cache := newFakeCache()
	svc := newService([]RegisteredPredictor{
		registered(pred, 1.0, time.Second),
	}, nil, cache)

	first, err := svc.ScoreContent(context.Background(), "普通的天气预报内容", BehavioralSignals{})
	require.NoError(t, err)
	second, err := svc.ScoreContent(context.Background(), "普通的天气预报内容", BehavioralSignals{})
	require.NoError(t, err)

	assert.Equal(t, 1, pred.callCount(), "second call must be served from cache")
	assert.Equal(t, first.DetectionID, second.DetectionID)
	assert.Equal(t, first.ComputedAt, second.ComputedAt, "cached verdict is returned verbatim")
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
}

func TestScoreContentCacheIgnoresBehavioralSignals(t *testing.T) {
	pred := &countingPredictor{fakePredictor: fakePredictor{id: "a", out: okOutput("a", RiskSafe)}}
	svc := newService([]RegisteredPredictor{
		registered(pred, 1.0, time.Second),
	}, nil, newFakeCache())

	_, err := svc.ScoreContent(context.Background(), "同一条内容", BehavioralSignals{ShareCount: 1})
	require.NoError(t, err)
	_, err = svc.ScoreContent(context.Background(), "同一条内容", BehavioralSignals{ShareCount: 99999})
	require.NoError(t, err)

	assert.Equal(t, 1, pred.callCount())
}

func TestScoreContentFallbackWhenAllPredictorsFail(t *testing.T) {
	svc := newService([]RegisteredPredictor{
		registered(&fakePredictor{id: "a", err: errors.New("down")}, 0.5, time.Second),
		registered(&fakePredictor{id: "b", err: errors.New("down")}, 0.5, time.Second),
	}, nil, nil)

	verdict, err := svc.ScoreContent(context.Background(), "一段普通文本", BehavioralSignals{})
	require.NoError(t, err)

	assert.Equal(t, RiskSafe, verdict.Level, "fallback never raises an unsubstantiated alarm")
	assert.True(t, verdict.Degraded)
	assert.InDelta(t, 0.5, verdict.Confidence, 1e-9)
	assert.NotEmpty(t, verdict.Reasons)
	assert.NotEmpty(t, verdict.DetectionID)
}

func TestScoreContentRulePrecheckShortCircuits(t *testing.T) {
	slow := &countingPredictor{fakePredictor: fakePredictor{id: "llm", delay: 10 * time.Second, out: okOutput("llm", RiskSafe)}}
	rules := NewRuleEngine(DefaultRuleWeights())
	svc := newService([]RegisteredPredictor{
		registered(rules, 0.5, time.Second),
		registered(slow, 0.5, 20*time.Second),
	}, rules, nil)

	start := time.Now()
	verdict, err := svc.ScoreContent(context.Background(),
		"保证收益稳赚不赔，高收益无风险投资，快来参加", BehavioralSignals{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second, "clear-cut danger must not wait for the fan-out")
	assert.Equal(t, RiskDanger, verdict.Level)
	assert.True(t, verdict.Degraded, "short-circuit skips registered predictors")
	assert.Equal(t, 0, slow.callCount())
}

func TestScoreContentRulesNotInvokedTwice(t *testing.T) {
	rules := NewRuleEngine(DefaultRuleWeights())
	other := &countingPredictor{fakePredictor: fakePredictor{id: "llm", out: okOutput("llm", RiskSafe)}}
	svc := newService([]RegisteredPredictor{
		registered(rules, 0.4, time.Second),
		registered(other, 0.6, time.Second),
	}, rules, nil)

	verdict, err := svc.ScoreContent(context.Background(), "今天天气不错，适合散步", BehavioralSignals{})
	require.NoError(t, err)

	assert.False(t, verdict.Degraded, "both predictors contributed")
	assert.Equal(t, 1, other.callCount())
}

func TestScoreBatchAlignedResults(t *testing.T) {
	rules := NewRuleEngine(DefaultRuleWeights())
	svc := newService([]RegisteredPredictor{
		registered(rules, 1.0, time.Second),
	}, rules, nil)

	texts := []string{
		"保证收益稳赚不赔，无风险投资高收益",
		"今天的新闻联播播出了天气预报",
		"包治百病的祖传秘方，药到病除",
	}
	verdicts, err := svc.ScoreBatch(context.Background(), texts, BehavioralSignals{})
	require.NoError(t, err)
	require.Len(t, verdicts, len(texts))

	assert.Equal(t, RiskDanger, verdicts[0].Level)
	assert.Equal(t, RiskSafe, verdicts[1].Level)
	assert.Equal(t, RiskDanger, verdicts[2].Level)
}

func TestScoreBatchRejectsAnyEmptyText(t *testing.T) {
	rules := NewRuleEngine(DefaultRuleWeights())
	svc := newService([]RegisteredPredictor{
		registered(rules, 1.0, time.Second),
	}, rules, nil)

	_, err := svc.ScoreBatch(context.Background(), []string{"正常内容", "  "}, BehavioralSignals{})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, svc.Stats().TotalDetections, "validation happens before any scoring")
}

func TestStatsCounters(t *testing.T) {
	rules := NewRuleEngine(DefaultRuleWeights())
	svc := newService([]RegisteredPredictor{
		registered(rules, 1.0, time.Second),
	}, rules, newFakeCache())

	_, err := svc.ScoreContent(context.Background(), "保证收益稳赚不赔，无风险投资", BehavioralSignals{})
	require.NoError(t, err)
	_, err = svc.ScoreContent(context.Background(), "保证收益稳赚不赔，无风险投资", BehavioralSignals{})
	require.NoError(t, err)
	_, err = svc.ScoreContent(context.Background(), "正常的生活内容分享", BehavioralSignals{})
	require.NoError(t, err)

	stats := svc.Stats()
	assert.Equal(t, int64(3), stats.TotalDetections)
	assert.Equal(t, int64(2), stats.DangerCount)
	assert.Equal(t, int64(1), stats.SafeCount)
	assert.Equal(t, int64(1), stats.CacheHits)
}

func TestHealthCheck(t *testing.T) {
	rules := NewRuleEngine(DefaultRuleWeights())
	svc := newService([]RegisteredPredictor{
		registered(rules, 1.0, time.Second),
	}, rules, nil)

	status := svc.HealthCheck(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, RiskSafe, status.ProbeLevel)
	assert.Equal(t, 1, status.Predictors)
}
