package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/adapters/bedrock"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/adapters/gemini"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/adapters/openai"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/config"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/utils"
)

// PredictorFactory builds the registered predictor set from config.
type PredictorFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewPredictorFactory creates a new predictor factory
func NewPredictorFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *PredictorFactory {
	return &PredictorFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// RuleWeights reads the rule engine's tuning values.
func (f *PredictorFactory) RuleWeights() core.RuleWeights {
	return core.RuleWeights{
		FinancialPerMatch: f.cfg.GetFloat64("rules.financial_per_match"),
		MedicalPerMatch:   f.cfg.GetFloat64("rules.medical_per_match"),
		GeneralPerMatch:   f.cfg.GetFloat64("rules.general_per_match"),
		UrgencyBonus:      f.cfg.GetFloat64("rules.urgency_bonus"),
		ContactBonus:      f.cfg.GetFloat64("rules.contact_bonus"),
		DangerThreshold:   f.cfg.GetFloat64("rules.danger_threshold"),
		WarningThreshold:  f.cfg.GetFloat64("rules.warning_threshold"),
	}
}

// CreateRegistry builds every configured predictor. Predictors whose
// provider cannot be constructed (a missing API key, for instance) are
// skipped with a warning rather than failing startup: the engine
// degrades, it does not refuse to run.
func (f *PredictorFactory) CreateRegistry(rules *core.RuleEngine) ([]core.RegisteredPredictor, error) {
	predictorCfgs, err := f.cfg.GetPredictors()
	if err != nil {
		return nil, err
	}

	var registry []core.RegisteredPredictor
	for _, pc := range predictorCfgs {
		predictor, err := f.createPredictor(pc, rules)
		if err != nil {
			f.logger.Warn("Skipping predictor",
				zap.String("id", pc.ID),
				zap.String("provider", pc.Provider),
				zap.Error(err))
			continue
		}
		registry = append(registry, core.RegisteredPredictor{
			Predictor: predictor,
			Weight:    pc.Weight,
			Timeout:   pc.Timeout,
		})
	}

	if len(registry) == 0 {
		return nil, fmt.Errorf("no usable predictors configured")
	}
	return registry, nil
}

func (f *PredictorFactory) createPredictor(pc config.PredictorConfig, rules *core.RuleEngine) (core.Predictor, error) {
	switch pc.Provider {
	case "rules":
		return rules, nil
	case "openai":
		openaiCfg := f.cfg.GetOpenAI()
		if openaiCfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key not configured")
		}
		return openai.NewPredictor(
			pc.ID,
			openaiCfg.APIKey,
			openaiCfg.ModelName,
			openaiCfg.MaxTokens,
			openaiCfg.Temperature,
			openaiCfg.TopP,
			openaiCfg.MaxBodySize,
			f.logger,
			f.textProcessor,
		), nil
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		if geminiCfg.APIKey == "" {
			return nil, fmt.Errorf("gemini api key not configured")
		}
		return gemini.NewPredictor(
			pc.ID,
			geminiCfg.APIKey,
			geminiCfg.ModelName,
			geminiCfg.MaxTokens,
			geminiCfg.Temperature,
			geminiCfg.TopP,
			geminiCfg.MaxBodySize,
			f.logger,
			f.textProcessor,
		)
	case "bedrock":
		bedrockFactory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return bedrockFactory.CreatePredictor(pc.ID)
	default:
		return nil, fmt.Errorf("unsupported predictor provider: %s", pc.Provider)
	}
}
