package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/pkg/errors"
	"go.uber.org/zap"
)

const (
	scraperTimeout    = 15 * time.Second
	scraperUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	scraperCacheTTL   = 30 * time.Minute
	youtubeChannelURL = "https://www.youtube.com/channel/"
)

// ScraperProvider resolves channel metadata from the public channel page
// meta tags. Used as fallback when the Data API cannot serve the request.
type ScraperProvider struct {
	httpClient *http.Client
	cache      metadataCache
	logger     *zap.Logger
	baseURL    string
}

func NewScraperProvider(cache metadataCache, logger *zap.Logger) *ScraperProvider {
	return &ScraperProvider{
		httpClient: &http.Client{
			Timeout: scraperTimeout,
		},
		cache:   cache,
		logger:  logger,
		baseURL: youtubeChannelURL,
	}
}

func (s *ScraperProvider) FetchChannel(ctx context.Context, channelID string) (*domain.ChannelMetadata, error) {
	cacheKey := "metadata:scraper:" + channelID
	if s.cache != nil {
		var cached domain.ChannelMetadata
		if found, _ := s.cache.Get(ctx, cacheKey, &cached); found {
			s.logger.Debug("Scraper cache hit", zap.String("channel", channelID))
			return &cached, nil
		}
	}

	pageURL := s.baseURL + channelID
	s.logger.Info("Fetching channel page (FALLBACK MODE)",
		zap.String("channel", channelID),
		zap.String("url", pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build scraper request: %w", err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewServiceError("channel page fetch failed", "scraper", "FetchChannel", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFoundError("channel", channelID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewServiceError(
			fmt.Sprintf("channel page returned status %d", resp.StatusCode),
			"scraper", "FetchChannel", nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel page: %w", err)
	}

	metadata := parseChannelPage(doc, channelID)
	if metadata.Name == "" {
		return nil, errors.NewNotFoundError("channel", channelID)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, metadata, scraperCacheTTL); err != nil {
			s.logger.Warn("Scraper cache write failed", zap.Error(err))
		}
	}
	return metadata, nil
}

func parseChannelPage(doc *goquery.Document, channelID string) *domain.ChannelMetadata {
	metadata := &domain.ChannelMetadata{
		ID:       channelID,
		Platform: "youtube",
		URL:      youtubeChannelURL + channelID,
	}

	metaContent := func(property string) string {
		value, _ := doc.Find(`meta[property="` + property + `"]`).Attr("content")
		if value == "" {
			value, _ = doc.Find(`meta[name="` + property + `"]`).Attr("content")
		}
		return strings.TrimSpace(value)
	}

	metadata.Name = metaContent("og:title")
	metadata.Description = metaContent("og:description")
	if metadata.Description == "" {
		metadata.Description = metaContent("description")
	}
	metadata.ThumbnailURL = metaContent("og:image")

	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if idx := strings.Index(canonical, "/@"); idx >= 0 {
			metadata.CustomURL = canonical[idx+1:]
		}
	}

	// Subscriber counts only appear in embedded page data, not meta tags.
	// Best effort: some localized pages expose them in itemprop spans.
	if raw, ok := doc.Find(`meta[itemprop="interactionCount"]`).Attr("content"); ok {
		if count, err := strconv.ParseInt(raw, 10, 64); err == nil {
			metadata.Subscribers = count
		}
	}

	return metadata
}
