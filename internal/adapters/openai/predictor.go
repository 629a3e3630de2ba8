package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/utils"
)

// Predictor scores content credibility through the OpenAI chat API.
type Predictor struct {
	client        *openai.Client
	id            string
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// credibilityResponse is the structured JSON shape the model is asked
// to produce.
type credibilityResponse struct {
	VerdictLevel  string             `json:"verdict_level"`
	Confidence    float64            `json:"confidence"`
	Rationale     string             `json:"rationale"`
	FeatureScores map[string]float64 `json:"feature_scores"`
}

// NewPredictor creates an OpenAI-backed predictor.
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
) *Predictor {
	return &Predictor{
		client:        openai.NewClient(apiKey),
		id:            id,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `你是一个面向老年用户的虚假信息检测系统。分析下面的内容，判断其可信度风险。
用一个JSON对象回答，包含：
- verdict_level: "safe"、"warning" 或 "danger"
- confidence: 0到1之间的数字（你对判断的确信程度）
- rationale: 简短的中文判断理由
- feature_scores: 各风险特征的评分（0到1），键可包括 financial_fraud、medical_fraud、general_scam、urgency_language、contact_solicitation、monetary_promise

内容：
%s

预计算特征：
%s

只回答JSON对象，不要输出其他内容。`,
	}
}

// ID returns the configured predictor identifier.
func (p *Predictor) ID() string { return p.id }

// Predict sends the sample to OpenAI and normalizes the response.
func (p *Predictor) Predict(ctx context.Context, sample *core.ContentSample, features core.FeatureSet) (*core.PredictorOutput, error) {
	body := p.textProcessor.ProcessText(sample.Text, p.maxBodySize)
	prompt := fmt.Sprintf(p.promptFormat, body, formatFeatures(features))

	req := openai.ChatCompletionRequest{
		Model: p.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "你是一个内容可信度评估系统。只输出JSON。",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		TopP:        p.topP,
	}
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: "json"}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := parseResponse(resp.Choices[0].Message.Content)
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

// parseResponse unmarshals the model's JSON, falling back to extracting
// the outermost object when the model wrapped it in prose.
func parseResponse(text string) (*credibilityResponse, error) {
	var parsed credibilityResponse
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return &parsed, nil
	}

	start, end := -1, -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start = i
			break
		}
	}
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '}' {
			end = i + 1
			break
		}
	}
	if start < 0 || start >= end {
		return nil, fmt.Errorf("no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(text[start:end]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return &parsed, nil
}

func formatFeatures(features core.FeatureSet) string {
	encoded, err := json.Marshal(features.Scores())
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
