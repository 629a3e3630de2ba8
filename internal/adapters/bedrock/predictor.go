package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/utils"
)

// Predictor scores content credibility through Amazon Bedrock.
type Predictor struct {
	client        *bedrockruntime.Client
	id            string
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
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

// NewPredictor creates a Bedrock-backed predictor.
func NewPredictor(
	client *bedrockruntime.Client,
	id string,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Predictor {
	return &Predictor{
		client:        client,
		id:            id,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
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
	}
}

// ID returns the configured predictor identifier.
func (p *Predictor) ID() string { return p.id }

func (p *Predictor) isAnthropicModel() bool {
	return strings.Contains(p.modelID, "anthropic")
}

func (p *Predictor) isAmazonTitanModel() bool {
	return strings.Contains(p.modelID, "amazon.titan")
}

// Predict invokes the Bedrock model and normalizes the response.
func (p *Predictor) Predict(ctx context.Context, sample *core.ContentSample, features core.FeatureSet) (*core.PredictorOutput, error) {
	body := p.textProcessor.ProcessText(sample.Text, p.maxBodySize)

	encodedFeatures, err := json.Marshal(features.Scores())
	if err != nil {
		encodedFeatures = []byte("{}")
	}
	prompt := fmt.Sprintf(p.promptFormat, body, string(encodedFeatures))

	var payload []byte
	if p.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": p.maxTokens,
			"temperature":          p.temperature,
			"top_p":                p.topP,
		})
	} else if p.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": p.maxTokens,
				"temperature":   p.temperature,
				"topP":          p.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  p.maxTokens,
			"temperature": p.temperature,
			"top_p":       p.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &p.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := p.extractText(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed, err := parseResponse(responseText)
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

// extractText pulls the generated text out of the model-specific
// response envelope.
func (p *Predictor) extractText(body []byte) (string, error) {
	if p.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if p.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	default:
		return string(body), nil
	}
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
