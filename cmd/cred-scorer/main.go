package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/adapters/cli"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/config"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/factory"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/logging"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/utils"
)

var (
	// Scoring flags
	text     = flag.String("text", "", "Text to score (reads stdin or -file if empty)")
	file     = flag.String("file", "", "Input text file (use stdin if not specified)")
	deadline = flag.Duration("deadline", 5*time.Second, "Overall scoring deadline")

	// Provider flags
	openaiAPIKey = flag.String("openai-api-key", "", "API key for OpenAI")
	geminiAPIKey = flag.String("gemini-api-key", "", "API key for Google Gemini")

	// Output flags
	verbose = flag.Bool("verbose", false, "Enable verbose output")
	jsonLog = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := createConfigFromFlags()

	input, err := readInput()
	if err != nil {
		logger.Fatal("Failed to read input", zap.Error(err))
	}

	service, err := buildService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build scoring service", zap.Error(err))
	}

	scorer := cli.NewScorer(service, logger, *verbose)

	ctx, cancel := context.WithTimeout(context.Background(), *deadline+time.Second)
	defer cancel()

	verdict, err := scorer.ScoreText(ctx, input)
	if err != nil {
		os.Exit(1)
	}
	if verdict.Level == core.RiskDanger {
		os.Exit(2)
	}
}

// createConfigFromFlags builds a config instance from the command line.
// The one-shot command never touches persistent caches.
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("cache.enabled", false)
	v.Set("history.enabled", false)
	v.Set("scoring.request_deadline", deadline.String())

	if *openaiAPIKey != "" {
		v.Set("openai.api_key", *openaiAPIKey)
	}
	if *geminiAPIKey != "" {
		v.Set("gemini.api_key", *geminiAPIKey)
	}

	return config.NewFromViper(v)
}

func buildService(cfg *config.Config, logger *zap.Logger) (*core.CredibilityService, error) {
	textProcessor := utils.NewTextProcessor(logger)
	predictorFactory := factory.NewPredictorFactory(cfg, logger, textProcessor)

	rules := core.NewRuleEngine(predictorFactory.RuleWeights())
	registry, err := predictorFactory.CreateRegistry(rules)
	if err != nil {
		return nil, err
	}

	gateway := core.NewGateway(registry, logger)
	aggregator := core.NewAggregator(gateway.Weights())

	reqDeadline, err := cfg.GetDuration("scoring.request_deadline")
	if err != nil {
		return nil, err
	}

	return core.NewCredibilityService(
		gateway,
		aggregator,
		rules,
		nil,
		nil,
		logger,
		false,
		0,
		reqDeadline,
	), nil
}

func readInput() (string, error) {
	if *text != "" {
		return *text, nil
	}

	var reader io.Reader
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			return "", err
		}
		defer f.Close()
		reader = f
	} else {
		reader = os.Stdin
	}

	data, err := io.ReadAll(bufio.NewReader(reader))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
