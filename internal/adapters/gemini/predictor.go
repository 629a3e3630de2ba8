package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/utils"
)

// Predictor scores content credibility through Google Gemini.
type Predictor struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	id            string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

type credibilityResponse struct {
	VerdictLevel  string             `json:"verdict_level"`
	Confidence    float64            `json:"confidence"`
	Rationale     string             `json:"rationale"`
	FeatureScores map[string]float64 `json:"feature_scores"`
}

// NewPredictor creates a Gemini-backed predictor.
func NewPredictor(
	id string,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Predictor, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Predictor{
		client:        client,
		model:         model,
		id:            id,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `你是一个面向老年用户的虚假信息检测系统。分析下面的内容，判断其可信度风险。
用一个JSON对象回答，包含：
- verdict_level: "safe"、"warning" 或 "danger"
- confidence: 0到1之间的数字
- rationale: 简短的中文判断理由
- feature_scores: 各风险特征的评分（0到1）

内容：
%s

预计算特征：
%s

只回答JSON对象，不要输出其他内容。`,
	}, nil
}

// Close closes the underlying Gemini client.
func (p *Predictor) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// ID returns the configured predictor identifier.
func (p *Predictor) ID() string { return p.id }

// Predict sends the sample to Gemini and normalizes the response.
func (p *Predictor) Predict(ctx context.Context, sample *core.ContentSample, features core.FeatureSet) (*core.PredictorOutput, error) {
	body := p.textProcessor.ProcessText(sample.Text, p.maxBodySize)

	encodedFeatures, err := json.Marshal(features.Scores())
	if err != nil {
		encodedFeatures = []byte("{}")
	}
	prompt := fmt.Sprintf(p.promptFormat, body, string(encodedFeatures))

	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	parsed, err := parseResponse(sb.String())
	if err != nil {
		return nil, err
	}

	return &core.PredictorOutput{
		PredictorID:   p.id,
		Level:         core.RiskLevel(parsed.VerdictLevel),
		Confidence:    parsed.Confidence,
		Rationale:     []string{parsed.Rationale},
		FeatureScores: parsed.FeatureScores,
	}, nil
}

func parseResponse(text string) (*credibilityResponse, error) {
	var parsed credibilityResponse
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return &parsed, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return &parsed, nil
}
