package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func output(id string, level RiskLevel, confidence float64, reasons ...string) *PredictorOutput {
	return &PredictorOutput{
		PredictorID: id,
		Level:       level,
		Confidence:  confidence,
		Rationale:   reasons,
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 1.0})

	_, err := agg.Aggregate(nil)

	assert.ErrorIs(t, err, ErrNoPredictors)
}

func TestAggregateSinglePredictorAfterSiblingTimeout(t *testing.T) {
	// Two registered predictors at 0.6/0.4; only A responds. Its
	// renormalized weight becomes 1.0 and its verdict carries.
	agg := NewAggregator(map[string]float64{"a": 0.6, "b": 0.4})

	verdict, err := agg.Aggregate([]*PredictorOutput{
		output("a", RiskDanger, 0.9, "模型A判定高风险"),
	})

	require.NoError(t, err)
	assert.Equal(t, RiskDanger, verdict.Level)
	assert.True(t, verdict.Degraded)
	assert.Equal(t, []string{"a"}, verdict.ContributingPredictors)
	assert.InDelta(t, 0.9, verdict.Confidence, 1e-9, "renormalized weight 1.0 times confidence 0.9")
	assert.InDelta(t, RiskDanger.Severity(), verdict.Score, 1e-9)
}

func TestAggregateWeightRenormalization(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 0.5, "b": 0.3, "c": 0.2})

	// With unanimous confidence 1.0, the blended confidence equals the
	// sum of renormalized weights, which must be 1.0 for any subset.
	subsets := [][]*PredictorOutput{
		{output("a", RiskSafe, 1.0)},
		{output("a", RiskSafe, 1.0), output("b", RiskSafe, 1.0)},
		{output("b", RiskSafe, 1.0), output("c", RiskSafe, 1.0)},
		{output("a", RiskSafe, 1.0), output("b", RiskSafe, 1.0), output("c", RiskSafe, 1.0)},
	}
	for _, outputs := range subsets {
		verdict, err := agg.Aggregate(outputs)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, verdict.Confidence, 1e-9)
	}
}

func TestAggregateTieBreaksTowardSeverity(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 0.5, "b": 0.5})

	verdict, err := agg.Aggregate([]*PredictorOutput{
		output("a", RiskWarning, 0.9, "可疑"),
		output("b", RiskDanger, 0.9, "危险"),
	})

	require.NoError(t, err)
	assert.Equal(t, RiskDanger, verdict.Level, "equal votes must not under-warn")
}

func TestAggregateSafeTieWithWarning(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 0.5, "b": 0.5})

	verdict, err := agg.Aggregate([]*PredictorOutput{
		output("a", RiskSafe, 0.8),
		output("b", RiskWarning, 0.8, "有点可疑"),
	})

	require.NoError(t, err)
	assert.Equal(t, RiskWarning, verdict.Level)
}

func TestAggregateOrderIndependent(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 0.4, "b": 0.3, "c": 0.3})

	outputs := []*PredictorOutput{
		output("a", RiskDanger, 0.9, "理由一"),
		output("b", RiskWarning, 0.6, "理由二"),
		output("c", RiskSafe, 0.4, "理由三"),
	}

	baseline, err := agg.Aggregate(outputs)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]*PredictorOutput, len(outputs))
		copy(shuffled, outputs)
		rng.Shuffle(len(shuffled), func(x, y int) {
			shuffled[x], shuffled[y] = shuffled[y], shuffled[x]
		})

		verdict, err := agg.Aggregate(shuffled)
		require.NoError(t, err)
		assert.Equal(t, baseline.Level, verdict.Level)
		assert.InDelta(t, baseline.Score, verdict.Score, 1e-9)
		assert.InDelta(t, baseline.Confidence, verdict.Confidence, 1e-9)
		assert.Equal(t, baseline.Reasons, verdict.Reasons)
		assert.Equal(t, baseline.TopFeatures, verdict.TopFeatures)
	}
}

func TestAggregateConfidenceDownweightsScore(t *testing.T) {
	agg := NewAggregator(map[string]float64{"sure": 0.7, "unsure": 0.3})

	verdict, err := agg.Aggregate([]*PredictorOutput{
		output("sure", RiskSafe, 0.95),
		output("unsure", RiskDanger, 0.1, "模糊的危险信号"),
	})

	require.NoError(t, err)
	// The low-confidence danger vote barely moves the blended score.
	assert.Less(t, verdict.Score, RiskWarning.Severity())
	assert.Equal(t, RiskSafe, verdict.Level)
}

func TestAggregateReasonsDeduplicatedAndWeightOrdered(t *testing.T) {
	agg := NewAggregator(map[string]float64{"heavy": 0.7, "light": 0.3})

	verdict, err := agg.Aggregate([]*PredictorOutput{
		output("light", RiskWarning, 0.8, "共同理由", "轻量理由"),
		output("heavy", RiskWarning, 0.8, "重量理由", "共同理由"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"重量理由", "共同理由", "轻量理由"}, verdict.Reasons)
}

func TestAggregateNonEmptyReasonsForRiskyVerdicts(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 1.0})

	verdict, err := agg.Aggregate([]*PredictorOutput{
		output("a", RiskDanger, 0.9),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, verdict.Reasons)
}

func TestAggregateTopFeatures(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 0.6, "b": 0.4})

	a := output("a", RiskDanger, 0.9, "危险")
	a.FeatureScores = map[string]float64{
		FeatureFinancial: 0.9,
		FeatureUrgency:   0.4,
		FeatureMoney:     0.3,
		FeatureEmphasis:  0.1,
	}
	b := output("b", RiskWarning, 0.7, "可疑")
	b.FeatureScores = map[string]float64{
		FeatureFinancial: 0.8,
		FeatureContact:   0.2,
	}

	verdict, err := agg.Aggregate([]*PredictorOutput{a, b})
	require.NoError(t, err)

	require.Len(t, verdict.TopFeatures, 3)
	assert.Equal(t, FeatureFinancial, verdict.TopFeatures[0].Name)

	var total float64
	for _, f := range verdict.TopFeatures {
		assert.Greater(t, f.Importance, 0.0)
		total += f.Importance
	}
	assert.LessOrEqual(t, total, 1.0+1e-9)
}

func TestAggregateSuggestionsFollowFeatures(t *testing.T) {
	agg := NewAggregator(map[string]float64{"a": 1.0})

	a := output("a", RiskDanger, 0.9, "危险")
	a.FeatureScores = map[string]float64{
		FeatureFinancial: 0.9,
		FeatureContact:   0.5,
	}

	verdict, err := agg.Aggregate([]*PredictorOutput{a})
	require.NoError(t, err)

	assert.Contains(t, verdict.Suggestions, "不要轻易相信保证收益的投资项目")
	assert.Contains(t, verdict.Suggestions, "不要轻易添加陌生人联系方式")
	assert.Contains(t, verdict.Suggestions, "如有疑问，请咨询家人或专业人士")
	assert.False(t, verdict.Degraded, "single registered predictor responding is the full set")
}
