package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuleEngine() *RuleEngine {
	return NewRuleEngine(DefaultRuleWeights())
}

func TestRuleEngineFinancialFraudText(t *testing.T) {
	engine := newTestRuleEngine()
	text := "保证收益，无风险投资，月入3万"

	out := engine.Score(text, ExtractFeatures(text))

	require.Equal(t, RulePredictorID, out.PredictorID)
	assert.Equal(t, RiskDanger, out.Level)
	assert.GreaterOrEqual(t, out.FeatureScores[FeatureFinancial], 0.9, "three matches at 0.3 each")
	assert.Equal(t, 0.8, out.Confidence)
	assert.Contains(t, out.Rationale, "发现3个金融诈骗相关关键词")
}

func TestRuleEngineLegitimateFinancialText(t *testing.T) {
	engine := newTestRuleEngine()
	text := "本产品年化收益3.5%，风险需谨慎"

	out := engine.Score(text, ExtractFeatures(text))

	assert.Equal(t, RiskSafe, out.Level)
	assert.Equal(t, 0.5, out.Confidence)
	assert.NotContains(t, out.FeatureScores, FeatureFinancial)
}

func TestRuleEngineDeterministic(t *testing.T) {
	engine := newTestRuleEngine()
	text := "祖传秘方包治百病，加微信咨询"
	features := ExtractFeatures(text)

	first := engine.Score(text, features)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.Score(text, features))
	}
}

func TestRuleEngineMonotonicity(t *testing.T) {
	engine := newTestRuleEngine()

	base := "有个项目了解一下"
	score := func(text string) float64 {
		out := engine.Score(text, ExtractFeatures(text))
		total := 0.0
		for _, cat := range []string{FeatureFinancial, FeatureMedical, FeatureGeneral} {
			total += out.FeatureScores[cat]
		}
		return total
	}

	previous := score(base)
	for _, kw := range []string{"保证收益", "稳赚不赔", "内幕消息", "无抵押贷款"} {
		base += "，" + kw
		current := score(base)
		assert.GreaterOrEqual(t, current, previous, "adding %q must never decrease the score", kw)
		previous = current
	}
}

func TestRuleEngineEmptyText(t *testing.T) {
	engine := newTestRuleEngine()

	for _, text := range []string{"", "   ", "\n\t"} {
		out := engine.Score(text, ExtractFeatures(text))
		assert.Equal(t, RiskSafe, out.Level)
		assert.Equal(t, 0.5, out.Confidence)
	}
}

func TestRuleEngineMedicalFraud(t *testing.T) {
	engine := newTestRuleEngine()
	text := "祖传秘方包治百病，三天见效，专家推荐"

	out := engine.Score(text, ExtractFeatures(text))

	assert.Equal(t, RiskDanger, out.Level)
	assert.Contains(t, out.FeatureScores, FeatureMedical)
}

func TestRuleEngineWarningBand(t *testing.T) {
	engine := newTestRuleEngine()
	// A single financial keyword plus one general keyword lands in
	// [0.4, 0.7): warning.
	text := "高收益项目，详情请转账咨询"

	out := engine.Score(text, ExtractFeatures(text))

	assert.Equal(t, RiskWarning, out.Level)
	assert.Equal(t, 0.8, out.Confidence)
}

func TestRuleEngineContactBonusRequiresOtherSignal(t *testing.T) {
	engine := newTestRuleEngine()

	// Contact solicitation alone stays safe.
	aloneText := "加微信聊聊天"
	alone := engine.Score(aloneText, ExtractFeatures(aloneText))
	assert.Equal(t, RiskSafe, alone.Level)

	// The same solicitation next to a financial keyword adds the bonus.
	comboText := "稳赚不赔的项目，加微信了解"
	combo := engine.Score(comboText, ExtractFeatures(comboText))
	assert.Contains(t, combo.Rationale, "含有联系方式且存在其他风险因素")
}

func TestRuleEnginePredictSameAsScore(t *testing.T) {
	engine := newTestRuleEngine()
	text := "恭喜获奖，免费领取，赶紧转账"
	features := ExtractFeatures(text)

	sample := &ContentSample{Text: text}
	fromPredict, err := engine.Predict(context.Background(), sample, features)

	require.NoError(t, err)
	assert.Equal(t, engine.Score(text, features), fromPredict)
}
