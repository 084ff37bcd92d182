package metadata

import (
	"context"

	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/pkg/errors"
	"go.uber.org/zap"
)

// FallbackProvider tries the primary provider first and falls back to the
// secondary when the primary fails for any reason other than the channel
// genuinely not existing.
type FallbackProvider struct {
	primary   Provider
	secondary Provider
	logger    *zap.Logger
}

func NewFallbackProvider(primary, secondary Provider, logger *zap.Logger) *FallbackProvider {
	return &FallbackProvider{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (f *FallbackProvider) FetchChannel(ctx context.Context, channelID string) (*domain.ChannelMetadata, error) {
	result, err := f.primary.FetchChannel(ctx, channelID)
	if err == nil {
		return result, nil
	}
	if errors.IsNotFound(err) || f.secondary == nil {
		return nil, err
	}

	f.logger.Warn("Primary metadata provider failed, trying fallback",
		zap.String("channel", channelID),
		zap.Error(err))
	return f.secondary.FetchChannel(ctx, channelID)
}
