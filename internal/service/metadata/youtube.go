// Package metadata resolves public channel information. The YouTube Data
// API is the primary source; a scraper fallback covers channels the API
// cannot serve or quota-exhausted days.
package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Provider resolves channel metadata from a URL or channel id.
type Provider interface {
	FetchChannel(ctx context.Context, channelID string) (*domain.ChannelMetadata, error)
}

type metadataCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// YouTubeProvider reads channel snippets and statistics through the Data
// API v3 with daily quota accounting.
type YouTubeProvider struct {
	service    *youtube.Service
	cache      metadataCache
	logger     *zap.Logger
	quotaUsed  int
	quotaMu    sync.Mutex
	quotaReset time.Time
}

func NewYouTubeProvider(ctx context.Context, apiKey string, cache metadataCache, logger *zap.Logger) (*YouTubeProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	p := &YouTubeProvider{
		service:    service,
		cache:      cache,
		logger:     logger,
		quotaReset: nextQuotaReset(),
	}

	logger.Info("YouTube metadata provider initialized",
		zap.Time("quotaReset", p.quotaReset))
	return p, nil
}

// nextQuotaReset calculates the next quota reset (midnight Pacific Time).
func nextQuotaReset() time.Time {
	pt, _ := time.LoadLocation("America/Los_Angeles")
	now := time.Now().In(pt)
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, pt)
}

func (p *YouTubeProvider) checkQuota(cost int) error {
	p.quotaMu.Lock()
	defer p.quotaMu.Unlock()

	now := time.Now()
	if now.After(p.quotaReset) {
		p.quotaUsed = 0
		p.quotaReset = nextQuotaReset()
		p.logger.Info("YouTube API quota auto-reset",
			zap.Time("nextReset", p.quotaReset))
	}

	limit := constants.YouTubeConfig.DailyQuotaLimit - constants.YouTubeConfig.QuotaSafetyMargin
	if p.quotaUsed+cost > limit {
		return &QuotaExceededError{
			Used:      p.quotaUsed,
			Limit:     constants.YouTubeConfig.DailyQuotaLimit,
			Requested: cost,
			ResetTime: p.quotaReset,
		}
	}
	return nil
}

func (p *YouTubeProvider) consumeQuota(cost int) {
	p.quotaMu.Lock()
	defer p.quotaMu.Unlock()

	p.quotaUsed += cost
	remaining := constants.YouTubeConfig.DailyQuotaLimit - p.quotaUsed

	p.logger.Debug("YouTube API quota consumed",
		zap.Int("cost", cost),
		zap.Int("used", p.quotaUsed),
		zap.Int("remaining", remaining))

	if remaining < constants.YouTubeConfig.QuotaSafetyMargin {
		p.logger.Warn("YouTube API quota running low",
			zap.Int("remaining", remaining),
			zap.Time("resetTime", p.quotaReset))
	}
}

// FetchChannel resolves snippet and statistics for a channel id.
func (p *YouTubeProvider) FetchChannel(ctx context.Context, channelID string) (*domain.ChannelMetadata, error) {
	cacheKey := "metadata:youtube:" + channelID
	if p.cache != nil {
		var cached domain.ChannelMetadata
		if found, _ := p.cache.Get(ctx, cacheKey, &cached); found {
			p.logger.Debug("Metadata cache hit", zap.String("channel", channelID))
			return &cached, nil
		}
	}

	if err := p.checkQuota(constants.YouTubeConfig.ChannelsQuotaCost); err != nil {
		return nil, err
	}

	call := p.service.Channels.List([]string{"snippet", "statistics"}).
		Id(channelID).
		MaxResults(1).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return nil, errors.NewServiceError("YouTube channels.list failed", "youtube", "FetchChannel", err)
	}
	p.consumeQuota(constants.YouTubeConfig.ChannelsQuotaCost)

	if len(response.Items) == 0 {
		return nil, errors.NewNotFoundError("channel", channelID)
	}

	metadata := channelMetadataFromItem(response.Items[0])

	if p.cache != nil {
		if err := p.cache.Set(ctx, cacheKey, metadata, constants.CacheTTL.ChannelMetadata); err != nil {
			p.logger.Warn("Metadata cache write failed", zap.Error(err))
		}
	}
	return metadata, nil
}

func channelMetadataFromItem(item *youtube.Channel) *domain.ChannelMetadata {
	metadata := &domain.ChannelMetadata{
		ID:       item.Id,
		Platform: "youtube",
		URL:      "https://www.youtube.com/channel/" + item.Id,
	}

	if item.Snippet != nil {
		metadata.Name = item.Snippet.Title
		metadata.Description = item.Snippet.Description
		metadata.CustomURL = item.Snippet.CustomUrl
		if published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			metadata.PublishedAt = published
		}
		if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.High != nil {
			metadata.ThumbnailURL = item.Snippet.Thumbnails.High.Url
		}
	}
	if item.Statistics != nil {
		metadata.Subscribers = int64(item.Statistics.SubscriberCount)
		metadata.VideoCount = int64(item.Statistics.VideoCount)
	}
	return metadata
}

// QuotaExceededError signals the daily API budget would be exceeded.
type QuotaExceededError struct {
	Used      int
	Limit     int
	Requested int
	ResetTime time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("YouTube API quota exceeded: used %d/%d, requested %d, resets at %s",
		e.Used, e.Limit, e.Requested, e.ResetTime.Format(time.RFC3339))
}
