package core

import (
	"context"
	"fmt"
	"strings"
)

// RulePredictorID identifies the built-in rule engine in weight config.
const RulePredictorID = "rules"

// RuleWeights are the per-category scoring constants. They are tuning
// values loaded from configuration, not validated ground truth.
type RuleWeights struct {
	FinancialPerMatch float64
	MedicalPerMatch   float64
	GeneralPerMatch   float64
	UrgencyBonus      float64
	ContactBonus      float64
	DangerThreshold   float64
	WarningThreshold  float64
}

// DefaultRuleWeights returns the scoring constants carried over from the
// original keyword engine.
func DefaultRuleWeights() RuleWeights {
	return RuleWeights{
		FinancialPerMatch: 0.3,
		MedicalPerMatch:   0.3,
		GeneralPerMatch:   0.2,
		UrgencyBonus:      0.2,
		ContactBonus:      0.1,
		DangerThreshold:   0.7,
		WarningThreshold:  0.4,
	}
}

// RuleEngine is the deterministic keyword predictor. It is the cheapest
// registered predictor and doubles as the fast local pre-check.
type RuleEngine struct {
	weights   RuleWeights
	financial []string
	medical   []string
	general   []string
}

// NewRuleEngine creates a rule engine with the curated keyword sets.
func NewRuleEngine(weights RuleWeights) *RuleEngine {
	return &RuleEngine{
		weights: weights,
		financial: []string{
			"保证收益", "无风险投资", "月入", "稳赚不赔", "高收益",
			"内幕消息", "股票推荐", "虚拟货币", "数字货币", "区块链投资",
			"外汇交易", "原油投资", "贵金属投资", "传销", "拉人头",
			"加盟费", "入会费", "层级分销", "无抵押贷款", "秒批",
			"黑户贷款", "征信修复", "花呗提现", "借呗套现", "裸贷",
			"高利贷", "信用卡套现", "刷单", "代还信用卡",
		},
		medical: []string{
			"包治百病", "神奇疗效", "祖传秘方", "一次根治", "永不复发",
			"药到病除", "立竿见影", "绝对有效", "100%治愈", "三天见效",
			"医院不告诉你", "医生都在用", "专家推荐", "权威认证",
			"癌症克星", "延年益寿", "排毒养颜", "减肥神器", "壮阳补肾",
			"增高神器", "特效药", "偏方", "宫廷秘方", "三无产品", "假药",
		},
		general: []string{
			"加微信", "联系qq", "私信我", "留电话", "扫码进群",
			"转账", "汇款", "打款", "预付款", "保证金", "手续费",
			"中奖", "恭喜获奖", "幸运用户", "免费领取", "0元购",
			"亏本甩卖", "跳楼价",
		},
	}
}

func (e *RuleEngine) ID() string { return RulePredictorID }

// Predict scores a sample against the keyword sets. It never fails:
// empty or whitespace text yields a safe zero-score output.
func (e *RuleEngine) Predict(_ context.Context, sample *ContentSample, features FeatureSet) (*PredictorOutput, error) {
	return e.Score(sample.Text, features), nil
}

// Score is the synchronous form of Predict, used directly by the service
// for the fast pre-check.
func (e *RuleEngine) Score(text string, features FeatureSet) *PredictorOutput {
	lowered := strings.ToLower(strings.TrimSpace(text))

	finMatches := countMatches(lowered, e.financial)
	medMatches := countMatches(lowered, e.medical)
	genMatches := countMatches(lowered, e.general)

	score := float64(finMatches)*e.weights.FinancialPerMatch +
		float64(medMatches)*e.weights.MedicalPerMatch +
		float64(genMatches)*e.weights.GeneralPerMatch

	rationale := []string{}
	featureScores := features.Scores()

	if finMatches > 0 {
		rationale = append(rationale, fmt.Sprintf("发现%d个金融诈骗相关关键词", finMatches))
		featureScores[FeatureFinancial] = clamp01(float64(finMatches) * e.weights.FinancialPerMatch)
	}
	if medMatches > 0 {
		rationale = append(rationale, fmt.Sprintf("发现%d个医疗虚假信息相关关键词", medMatches))
		featureScores[FeatureMedical] = clamp01(float64(medMatches) * e.weights.MedicalPerMatch)
	}
	if genMatches > 0 {
		rationale = append(rationale, fmt.Sprintf("发现%d个通用诈骗相关关键词", genMatches))
		featureScores[FeatureGeneral] = clamp01(float64(genMatches) * e.weights.GeneralPerMatch)
	}

	if features.UrgencyWordCount > 2 {
		score += e.weights.UrgencyBonus
		rationale = append(rationale, "内容使用大量紧急性语言，可能是诱导手段")
	}

	// Contact solicitation alone is benign; it only strengthens a score
	// that another category already raised.
	if features.ContactSolicitation && score > 0 {
		score += e.weights.ContactBonus
		rationale = append(rationale, "含有联系方式且存在其他风险因素")
	}

	score = clamp01(score)

	level := RiskSafe
	confidence := 0.5
	switch {
	case score >= e.weights.DangerThreshold:
		level = RiskDanger
		confidence = 0.8
	case score >= e.weights.WarningThreshold:
		level = RiskWarning
		confidence = 0.8
	}

	if len(rationale) == 0 && level == RiskSafe {
		rationale = append(rationale, "暂未发现明显风险")
	}

	return &PredictorOutput{
		PredictorID:   RulePredictorID,
		Level:         level,
		Confidence:    confidence,
		Rationale:     rationale,
		FeatureScores: featureScores,
	}
}

func countMatches(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			count++
		}
	}
	return count
}
