// Package tagger derives descriptive tags for a channel from an external
// text-generation call plus rule-based extraction, with a bounded cache and
// a deterministic fallback that never fails.
package tagger

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/internal/prompt"
	"github.com/kapu/channel-insight-go/internal/service/ai"
	"github.com/kapu/channel-insight-go/internal/util"
	"go.uber.org/zap"
)

var (
	hashtagPattern = regexp.MustCompile(`#[\w가-힣]+`)
	digitsPattern  = regexp.MustCompile(`^\d+$`)
	bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)
)

type patternRule struct {
	match string
	tags  []string
}

// descriptionPatterns lists phrases that imply a category tag in a channel
// description. Slice order fixes the order tags come out in.
var descriptionPatterns = []patternRule{
	{"게임", []string{"게임"}},
	{"게이밍", []string{"게임"}},
	{"gaming", []string{"게임"}},
	{"플레이", []string{"게임"}},
	{"요리", []string{"요리"}},
	{"레시피", []string{"요리"}},
	{"cooking", []string{"요리"}},
	{"음식", []string{"요리"}},
	{"교육", []string{"교육"}},
	{"강의", []string{"교육"}},
	{"학습", []string{"교육"}},
	{"튜토리얼", []string{"교육"}},
	{"리뷰", []string{"리뷰"}},
	{"review", []string{"리뷰"}},
	{"후기", []string{"리뷰"}},
	{"추천", []string{"리뷰"}},
	{"브이로그", []string{"브이로그"}},
	{"vlog", []string{"브이로그"}},
	{"일상", []string{"브이로그"}},
	{"daily", []string{"브이로그"}},
	{"음악", []string{"음악"}},
	{"music", []string{"음악"}},
	{"노래", []string{"음악"}},
	{"커버", []string{"음악"}},
	{"스포츠", []string{"스포츠"}},
	{"sports", []string{"스포츠"}},
	{"운동", []string{"스포츠"}},
	{"헬스", []string{"스포츠"}},
	{"기술", []string{"기술"}},
	{"tech", []string{"기술"}},
	{"it", []string{"기술"}},
	{"프로그래밍", []string{"기술"}},
}

// namePatterns lists substrings of a channel name and the tags they imply,
// in the order the tags should surface.
var namePatterns = []patternRule{
	{"TV", []string{"방송", "미디어"}},
	{"튜브", []string{"유튜브", "개인방송"}},
	{"채널", []string{"방송", "콘텐츠"}},
	{"리뷰", []string{"리뷰", "평가"}},
	{"게임", []string{"게임", "게이밍"}},
	{"요리", []string{"요리", "쿠킹"}},
	{"키즈", []string{"어린이", "키즈"}},
	{"Kids", []string{"어린이", "키즈"}},
	{"뷰티", []string{"뷰티", "화장품"}},
	{"피트니스", []string{"운동", "헬스"}},
}

// TextGenerator is the slice of the AI stack the extractor needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, preset ai.ModelPreset, opts *ai.GenerateOptions) (string, *ai.GenerateMetadata, error)
}

// TagCache is the slice of the cache service the extractor needs.
type TagCache interface {
	GetTags(ctx context.Context, key string) ([]string, bool)
	SetTags(ctx context.Context, key string, tags []string, ttl time.Duration)
}

type Extractor struct {
	generator TextGenerator
	cache     TagCache
	cacheTTL  time.Duration
	logger    *zap.Logger

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

func NewExtractor(generator TextGenerator, tagCache TagCache, cacheTTL time.Duration, logger *zap.Logger) *Extractor {
	if cacheTTL <= 0 {
		cacheTTL = constants.CacheTTL.ChannelTags
	}
	return &Extractor{
		generator: generator,
		cache:     tagCache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Extract derives up to ten tags for the channel. Extraction never fails:
// any upstream problem degrades to rule-based tags, and if those are empty
// too the deterministic fallback is returned.
func (e *Extractor) Extract(ctx context.Context, channel *domain.Channel, contentType domain.ContentType) []string {
	cacheKey := fmt.Sprintf("tags:%s:%s", channel.Platform, channel.ChannelID)

	if e.cache != nil {
		if cached, hit := e.cache.GetTags(ctx, cacheKey); hit {
			e.cacheHits.Add(1)
			e.logger.Debug("Tag cache hit", zap.String("channel", channel.Name))
			return cached
		}
		e.cacheMisses.Add(1)
	}

	e.logger.Info("Extracting tags", zap.String("channel", channel.Name))

	aiTags := e.extractWithAI(ctx, channel, contentType)
	descriptionTags := ExtractFromDescription(channel.Description)
	nameTags := ExtractFromName(channel.Name)

	merged := make([]string, 0, len(aiTags)+len(descriptionTags)+len(nameTags))
	merged = append(merged, aiTags...)
	merged = append(merged, descriptionTags...)
	merged = append(merged, nameTags...)

	cleaned := CleanAndFilterTags(util.UniqueStrings(merged))
	if len(cleaned) == 0 {
		cleaned = FallbackTags(channel)
	}

	if e.cache != nil {
		e.cache.SetTags(ctx, cacheKey, cleaned, e.cacheTTL)
	}

	e.logger.Info("Tag extraction complete",
		zap.String("channel", channel.Name),
		zap.Int("tag_count", len(cleaned)),
		zap.String("sample", strings.Join(firstN(cleaned, 5), ", ")),
	)

	return cleaned
}

// extractWithAI calls the text-generation service and parses the first
// bracketed list from its response. Any failure degrades to an empty list.
func (e *Extractor) extractWithAI(ctx context.Context, channel *domain.Channel, contentType domain.ContentType) []string {
	if e.generator == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, constants.AIConfig.TagExtractionTimeout)
	defer cancel()

	promptText := prompt.BuildTagPrompt(channel, contentType)

	text, metadata, err := e.generator.GenerateText(ctx, promptText, ai.PresetPrecise, &ai.GenerateOptions{
		Overrides: &ai.ModelConfig{MaxOutputTokens: constants.AIConfig.TagMaxOutputTokens},
	})
	if err != nil {
		e.logger.Warn("AI tag extraction failed, continuing with rules only",
			zap.String("channel", channel.Name),
			zap.Error(err),
		)
		return nil
	}

	tags := ParseTagList(text)
	if metadata != nil {
		e.logger.Debug("AI tags extracted",
			zap.String("provider", metadata.Provider),
			zap.Int("count", len(tags)),
		)
	}
	return tags
}

// ParseTagList pulls the first bracketed list out of free text and splits it
// into trimmed, unquoted tags.
func ParseTagList(text string) []string {
	match := bracketPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	parts := strings.Split(match[1], ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		tag = strings.Trim(tag, `"'`)
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ExtractFromDescription derives tags from free text: hashtags plus the
// fixed keyword-to-category dictionary.
func ExtractFromDescription(description string) []string {
	if description == "" {
		return nil
	}

	tags := make([]string, 0)

	for _, hashtag := range hashtagPattern.FindAllString(description, -1) {
		tags = append(tags, strings.TrimPrefix(hashtag, "#"))
	}

	lower := strings.ToLower(description)
	for _, rule := range descriptionPatterns {
		if strings.Contains(lower, strings.ToLower(rule.match)) {
			tags = append(tags, rule.tags...)
		}
	}

	return util.UniqueStrings(tags)
}

// ExtractFromName derives tags from patterns in the channel's display name.
func ExtractFromName(channelName string) []string {
	if channelName == "" {
		return nil
	}

	tags := make([]string, 0)
	for _, rule := range namePatterns {
		if strings.Contains(channelName, rule.match) {
			tags = append(tags, rule.tags...)
		}
	}

	return util.UniqueStrings(tags)
}

// CleanAndFilterTags drops empty, over-long, purely numeric and URL-bearing
// tokens, capping the result at the tag limit.
func CleanAndFilterTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len([]rune(tag)) > constants.TagLimits.MaxTagLength {
			continue
		}
		if digitsPattern.MatchString(tag) {
			continue
		}
		if strings.Contains(tag, "http") {
			continue
		}
		cleaned = append(cleaned, tag)
		if len(cleaned) == constants.TagLimits.MaxTags {
			break
		}
	}
	return cleaned
}

// FallbackTags is the deterministic last resort: platform, a subscriber
// size bucket and a generic category. Never empty.
func FallbackTags(channel *domain.Channel) []string {
	platform := channel.Platform
	if platform == "" {
		platform = "youtube"
	}

	var bucket string
	switch {
	case channel.Subscribers > 1_000_000:
		bucket = "대형채널"
	case channel.Subscribers > 100_000:
		bucket = "중견채널"
	default:
		bucket = "소형채널"
	}

	return []string{platform, bucket, "일반"}
}

// Statistics reports cache effectiveness counters.
func (e *Extractor) Statistics() (hits, misses int64) {
	return e.cacheHits.Load(), e.cacheMisses.Load()
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
