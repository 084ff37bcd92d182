package app

import (
	"context"
	"fmt"

	"github.com/kapu/channel-insight-go/internal/config"
	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/service/ai"
	"github.com/kapu/channel-insight-go/internal/service/cache"
	"github.com/kapu/channel-insight-go/internal/service/collector"
	"github.com/kapu/channel-insight-go/internal/service/database"
	"github.com/kapu/channel-insight-go/internal/service/metadata"
	"github.com/kapu/channel-insight-go/internal/service/tagger"
	"github.com/kapu/channel-insight-go/internal/store"
	"go.uber.org/zap"
)

// Container bundles the assembled services the engine binary runs on.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Cache     *cache.CacheService
	Postgres  *database.PostgresService
	Channels  *store.ChannelStore
	Clusters  *store.ClusterStore
	Extractor *tagger.Extractor
	Metadata  metadata.Provider
	Collector *collector.Collector
	Scheduler *collector.StatsScheduler

	closers []func()
}

// Close tears down infrastructure connections in reverse build order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build assembles all infrastructure services. Heavy initialization
// (DB/cache/AI) happens here so the callers stay focused on lifecycle.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Cache and database
	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache service: %w", err)
	}
	closers = append(closers, func() {
		_ = cacheSvc.Close()
	})

	if err := cacheSvc.WaitUntilReady(ctx, constants.RedisConfig.ReadyTimeout); err != nil {
		return nil, fmt.Errorf("redis not ready: %w", err)
	}

	postgresSvc, err := database.NewPostgresService(ctx, database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres service: %w", err)
	}
	closers = append(closers, func() {
		_ = postgresSvc.Close()
	})

	if err := store.EnsureSchema(ctx, postgresSvc.GetDB()); err != nil {
		return nil, err
	}

	channelStore := store.NewChannelStore(postgresSvc.GetDB(), cacheSvc, logger)
	clusterStore := store.NewClusterStore(postgresSvc.GetDB(), cacheSvc, logger)

	// AI stack
	modelManager, err := ai.NewModelManager(ctx, ai.ModelManagerConfig{
		GeminiAPIKey:       cfg.Gemini.APIKey,
		OpenAIAPIKey:       cfg.OpenAI.APIKey,
		DefaultGeminiModel: cfg.Gemini.Model,
		DefaultOpenAIModel: cfg.OpenAI.Model,
		EnableFallback:     cfg.OpenAI.EnableFallback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}

	extractor := tagger.NewExtractor(modelManager, cacheSvc, cfg.Cluster.TagCacheTTL, logger)

	// Metadata providers: Data API first, page scraper as fallback
	var metadataProvider metadata.Provider
	if cfg.YouTube.APIKey != "" {
		youtubeProvider, ytErr := metadata.NewYouTubeProvider(ctx, cfg.YouTube.APIKey, cacheSvc, logger)
		if ytErr != nil {
			return nil, fmt.Errorf("failed to create YouTube provider: %w", ytErr)
		}
		metadataProvider = youtubeProvider
		if cfg.YouTube.EnableScraper {
			scraper := metadata.NewScraperProvider(cacheSvc, logger)
			metadataProvider = metadata.NewFallbackProvider(youtubeProvider, scraper, logger)
		}
	} else if cfg.YouTube.EnableScraper {
		metadataProvider = metadata.NewScraperProvider(cacheSvc, logger)
		logger.Warn("No YouTube API key configured, metadata comes from the page scraper only")
	}

	engineCollector := collector.NewCollector(channelStore, clusterStore, extractor, metadataProvider, collector.Options{
		SuggestionThreshold: cfg.Cluster.SuggestionThreshold,
		GroupThreshold:      cfg.Cluster.GroupThreshold,
		MinGroupSize:        cfg.Cluster.MinGroupSize,
		CompareToGroup:      cfg.Cluster.CompareToGroup,
	}, logger)

	scheduler := collector.NewStatsScheduler(engineCollector, constants.StatsRefresh.Interval, logger)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Cache:     cacheSvc,
		Postgres:  postgresSvc,
		Channels:  channelStore,
		Clusters:  clusterStore,
		Extractor: extractor,
		Metadata:  metadataProvider,
		Collector: engineCollector,
		Scheduler: scheduler,
		closers:   closers,
	}, nil
}
