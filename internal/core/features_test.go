package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFeaturesEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  "} {
		assert.Equal(t, FeatureSet{}, ExtractFeatures(text))
	}
}

func TestExtractFeaturesCounts(t *testing.T) {
	text := "限时优惠！！马上行动，访问 https://example.com 联系电话13912345678，仅需998元"
	fs := ExtractFeatures(text)

	assert.Equal(t, 1, fs.ExclamationRuns)
	assert.Equal(t, 1, fs.URLCount)
	assert.Equal(t, 1, fs.PhonePatternCount)
	assert.Equal(t, 1, fs.MoneyMentionCount)
	assert.GreaterOrEqual(t, fs.UrgencyWordCount, 2, "限时 and 马上")
	assert.Greater(t, fs.EmphasisRatio, 0.0)
}

func TestExtractFeaturesContactSolicitation(t *testing.T) {
	assert.True(t, ExtractFeatures("有兴趣的加微信私聊").ContactSolicitation)
	assert.False(t, ExtractFeatures("今天天气不错").ContactSolicitation)
}

func TestExtractFeaturesSuspiciousReturnRate(t *testing.T) {
	assert.True(t, ExtractFeatures("年收益50%的理财产品").SuspiciousReturnRate)
	assert.False(t, ExtractFeatures("年化收益3.5%").SuspiciousReturnRate)
	// A bare percentage with no yield context is not a signal.
	assert.False(t, ExtractFeatures("电池还剩50%").SuspiciousReturnRate)
}

func TestExtractFeaturesDeterministic(t *testing.T) {
	text := "保证收益，无风险投资，月入3万！！赶紧加微信"
	first := ExtractFeatures(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ExtractFeatures(text))
	}
}

func TestFeatureSetScoresBounded(t *testing.T) {
	fs := FeatureSet{
		UrgencyWordCount:     100,
		MoneyMentionCount:    100,
		EmphasisRatio:        1,
		ContactSolicitation:  true,
		SuspiciousReturnRate: true,
		URLCount:             100,
	}
	for name, score := range fs.Scores() {
		assert.GreaterOrEqual(t, score, 0.0, name)
		assert.LessOrEqual(t, score, 1.0, name)
	}
}

func TestFeatureSetScoresOmitsAbsentSignals(t *testing.T) {
	scores := FeatureSet{}.Scores()
	assert.Empty(t, scores)
}
