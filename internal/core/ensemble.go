package core

import (
	"sort"
	"time"
)

// fallbackWeight is applied to a responding predictor that has no
// configured weight, before renormalization.
const fallbackWeight = 0.1

// topFeatureCount bounds the explanation bundle.
const topFeatureCount = 3

// featureSuggestions maps explanation features to user-facing advice.
var featureSuggestions = map[string]string{
	FeatureMoney:      "投资需谨慎，高收益往往伴随高风险",
	FeatureFinancial:  "不要轻易相信保证收益的投资项目",
	FeatureReturnRate: "投资需谨慎，高收益往往伴随高风险",
	FeatureMedical:    "有病请找正规医院，不要轻信偏方",
	FeatureGeneral:    "谨防诈骗，不要轻易转账或泄露个人信息",
	FeatureContact:    "不要轻易添加陌生人联系方式",
	FeatureUrgency:    "冷静思考，不要被紧急性语言误导",
}

var levelSuggestions = []string{
	"如有疑问，请咨询家人或专业人士",
	"遇到要求转账的情况请立即警惕",
}

// Aggregator combines predictor outputs into a single verdict via
// weighted voting with confidence blending. It is commutative over the
// outputs it receives: arrival order never changes the verdict.
type Aggregator struct {
	weights map[string]float64
}

// NewAggregator creates an aggregator over the registered weight table.
// Registered weights are expected to sum to 1.0; the active subset is
// renormalized per call.
func NewAggregator(weights map[string]float64) *Aggregator {
	return &Aggregator{weights: weights}
}

// Aggregate combines a non-empty set of predictor outputs. Callers must
// route the zero-output case to the degraded fallback instead.
func (a *Aggregator) Aggregate(outputs []*PredictorOutput) (*EnsembleVerdict, error) {
	if len(outputs) == 0 {
		return nil, ErrNoPredictors
	}

	// Renormalize the responding subset's weights to sum to 1.0 so a
	// dropped predictor redistributes its vote instead of silently
	// biasing the blend toward safe.
	sorted := make([]*PredictorOutput, len(outputs))
	copy(sorted, outputs)
	sort.SliceStable(sorted, func(i, j int) bool {
		wi, wj := a.weightOf(sorted[i].PredictorID), a.weightOf(sorted[j].PredictorID)
		if wi != wj {
			return wi > wj
		}
		return sorted[i].PredictorID < sorted[j].PredictorID
	})

	var weightSum float64
	for _, out := range sorted {
		weightSum += a.weightOf(out.PredictorID)
	}

	var (
		scoreNum, scoreDen float64
		confidence         float64
		votes              = map[RiskLevel]float64{}
		contributing       = make([]string, 0, len(sorted))
		featureTotals      = map[string]float64{}
	)

	for _, out := range sorted {
		w := a.weightOf(out.PredictorID) / weightSum

		scoreNum += w * out.Level.Severity() * out.Confidence
		scoreDen += w * out.Confidence
		confidence += w * out.Confidence
		votes[out.Level] += w
		contributing = append(contributing, out.PredictorID)

		for name, s := range out.FeatureScores {
			featureTotals[name] += w * s
		}
	}

	score := 0.0
	if scoreDen > 0 {
		score = scoreNum / scoreDen
	}

	level := electLevel(votes)

	reasons := mergeReasons(sorted)
	if len(reasons) == 0 {
		reasons = append(reasons, levelMessage(level))
	}

	topFeatures := rankFeatures(featureTotals)

	verdict := &EnsembleVerdict{
		Level:                  level,
		Score:                  clamp01(score),
		Confidence:             clamp01(confidence),
		Reasons:                reasons,
		Suggestions:            deriveSuggestions(level, topFeatures),
		TopFeatures:            topFeatures,
		ContributingPredictors: contributing,
		Degraded:               len(sorted) < len(a.weights),
		ComputedAt:             time.Now(),
	}
	return verdict, nil
}

func (a *Aggregator) weightOf(id string) float64 {
	if w, ok := a.weights[id]; ok && w > 0 {
		return w
	}
	return fallbackWeight
}

// electLevel picks the level with the largest weighted vote, breaking
// ties toward the more severe level. Never under-warn on a tie.
func electLevel(votes map[RiskLevel]float64) RiskLevel {
	const tolerance = 1e-9
	elected := RiskSafe
	best := votes[RiskSafe]
	for _, level := range []RiskLevel{RiskWarning, RiskDanger} {
		v, ok := votes[level]
		if !ok {
			continue
		}
		if v > best+tolerance || (v >= best-tolerance && level.MoreSevere(elected)) {
			elected = level
			best = v
		}
	}
	return elected
}

// mergeReasons concatenates rationale in predictor-weight order,
// dropping exact duplicates.
func mergeReasons(sorted []*PredictorOutput) []string {
	seen := map[string]struct{}{}
	var reasons []string
	for _, out := range sorted {
		for _, r := range out.Rationale {
			if r == "" {
				continue
			}
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			reasons = append(reasons, r)
		}
	}
	return reasons
}

// rankFeatures normalizes summed importances and keeps the top entries.
func rankFeatures(totals map[string]float64) []FeatureWeight {
	if len(totals) == 0 {
		return nil
	}

	var sum float64
	for _, v := range totals {
		sum += v
	}
	if sum <= 0 {
		return nil
	}

	ranked := make([]FeatureWeight, 0, len(totals))
	for name, v := range totals {
		ranked = append(ranked, FeatureWeight{Name: name, Importance: v / sum})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Importance != ranked[j].Importance {
			return ranked[i].Importance > ranked[j].Importance
		}
		return ranked[i].Name < ranked[j].Name
	})

	if len(ranked) > topFeatureCount {
		ranked = ranked[:topFeatureCount]
	}
	return ranked
}

func deriveSuggestions(level RiskLevel, topFeatures []FeatureWeight) []string {
	seen := map[string]struct{}{}
	var suggestions []string
	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		suggestions = append(suggestions, s)
	}

	for _, f := range topFeatures {
		if s, ok := featureSuggestions[f.Name]; ok {
			add(s)
		}
	}
	if level != RiskSafe {
		for _, s := range levelSuggestions {
			add(s)
		}
	}
	if len(suggestions) == 0 {
		add("保持平常心对待网络内容")
	}
	return suggestions
}

func levelMessage(level RiskLevel) string {
	switch level {
	case RiskDanger:
		return "检测到高风险内容，建议立即停止观看"
	case RiskWarning:
		return "内容存在可疑信息，请谨慎对待"
	default:
		return "暂未发现明显风险"
	}
}
