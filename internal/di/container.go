package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/adapters/httpapi"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/config"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/core"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/factory"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/logging"
	"github.com/Ethanwithtech/Fact-Safe-Elder/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewPredictorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewHistoryFactory); err != nil {
		return nil, err
	}

	// Register rule engine
	if err := container.Provide(func(f *factory.PredictorFactory) *core.RuleEngine {
		return core.NewRuleEngine(f.RuleWeights())
	}); err != nil {
		return nil, err
	}

	// Register predictor gateway
	if err := container.Provide(func(f *factory.PredictorFactory, rules *core.RuleEngine, logger *zap.Logger) (*core.Gateway, error) {
		registry, err := f.CreateRegistry(rules)
		if err != nil {
			return nil, err
		}
		return core.NewGateway(registry, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register ensemble aggregator
	if err := container.Provide(func(gateway *core.Gateway) *core.Aggregator {
		return core.NewAggregator(gateway.Weights())
	}); err != nil {
		return nil, err
	}

	// Register verdict cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.VerdictCache, error) {
		return f.CreateVerdictCache()
	}); err != nil {
		return nil, err
	}

	// Register history store
	if err := container.Provide(func(f *factory.HistoryFactory) (core.HistoryStore, error) {
		return f.CreateHistoryStore()
	}); err != nil {
		return nil, err
	}

	// Register credibility service
	if err := container.Provide(func(
		cfg *config.Config,
		gateway *core.Gateway,
		aggregator *core.Aggregator,
		rules *core.RuleEngine,
		cache core.VerdictCache,
		history core.HistoryStore,
		logger *zap.Logger,
		cacheFactory *factory.CacheFactory,
	) (*core.CredibilityService, error) {
		ttl, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		deadline, err := cfg.GetDuration("scoring.request_deadline")
		if err != nil {
			return nil, err
		}
		return core.NewCredibilityService(
			gateway,
			aggregator,
			rules,
			cache,
			history,
			logger,
			cacheFactory.IsCacheEnabled(),
			ttl,
			deadline,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register HTTP server
	if err := container.Provide(func(
		service *core.CredibilityService,
		history core.HistoryStore,
		logger *zap.Logger,
		cfg *config.Config,
	) *httpapi.Server {
		return httpapi.NewServer(
			service,
			history,
			logger,
			cfg.GetString("server.listen_address"),
			cfg.GetString("server.mode"),
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
