package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
)

// Scorer is a console adapter that scores one piece of text and prints
// the verdict. Used by the one-shot command.
type Scorer struct {
	service *core.CredibilityService
	logger  *zap.Logger
	verbose bool
}

// NewScorer creates a new console scorer.
func NewScorer(service *core.CredibilityService, logger *zap.Logger, verbose bool) *Scorer {
	return &Scorer{
		service: service,
		logger:  logger,
		verbose: verbose,
	}
}

// ScoreText scores the text and prints a human-readable report.
func (s *Scorer) ScoreText(ctx context.Context, text string) (*core.EnsembleVerdict, error) {
	fmt.Printf("\n=== 内容概要 ===\n")
	preview := text
	if !s.verbose && len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	fmt.Printf("%s\n", preview)
	fmt.Printf("长度: %d 字节\n\n", len(text))

	fmt.Printf("=== 检测 ===\n")
	startTime := time.Now()
	verdict, err := s.service.ScoreContent(ctx, text, core.BehavioralSignals{})
	if err != nil {
		s.logger.Error("Failed to score content", zap.Error(err))
		fmt.Printf("错误: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== 结果 ===\n")
	fmt.Printf("风险等级: %s\n", verdict.Level)
	fmt.Printf("风险评分: %.4f\n", verdict.Score)
	fmt.Printf("置信度: %.4f\n", verdict.Confidence)
	fmt.Printf("降级模式: %t\n", verdict.Degraded)
	fmt.Printf("参与预测器: %v\n", verdict.ContributingPredictors)
	fmt.Printf("耗时: %v\n", duration)

	if len(verdict.Reasons) > 0 {
		fmt.Printf("\n判断理由:\n")
		for _, r := range verdict.Reasons {
			fmt.Printf("  - %s\n", r)
		}
	}
	if len(verdict.Suggestions) > 0 {
		fmt.Printf("\n建议:\n")
		for _, sug := range verdict.Suggestions {
			fmt.Printf("  - %s\n", sug)
		}
	}
	if s.verbose && len(verdict.TopFeatures) > 0 {
		fmt.Printf("\n主要风险特征:\n")
		for _, f := range verdict.TopFeatures {
			fmt.Printf("  - %s: %.3f\n", f.Name, f.Importance)
		}
	}

	return verdict, nil
}
