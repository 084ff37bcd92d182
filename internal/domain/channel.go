package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/util"
)

// ContentType classifies a channel's typical video format.
type ContentType string

const (
	ContentTypeLongform  ContentType = "longform"
	ContentTypeShortform ContentType = "shortform"
	ContentTypeMixed     ContentType = "mixed"
	ContentTypeUnknown   ContentType = "unknown"
)

// ClassifyContentType derives a content type from the ratio of shortform
// videos among recent uploads. hasData is false when no recent-video sample
// was available.
func ClassifyContentType(shortformRatio float64, hasData bool) ContentType {
	if !hasData {
		return ContentTypeUnknown
	}
	switch {
	case shortformRatio >= 0.8:
		return ContentTypeShortform
	case shortformRatio <= 0.2:
		return ContentTypeLongform
	default:
		return ContentTypeMixed
	}
}

// ParseContentType maps a raw string to a known content type.
func ParseContentType(raw string) ContentType {
	switch ContentType(strings.ToLower(strings.TrimSpace(raw))) {
	case ContentTypeLongform:
		return ContentTypeLongform
	case ContentTypeShortform:
		return ContentTypeShortform
	case ContentTypeMixed:
		return ContentTypeMixed
	default:
		return ContentTypeUnknown
	}
}

// ChannelKey is the compound identity of a channel. Raw external ids are not
// unique across platforms, so every store and cache lookup keys on the pair.
type ChannelKey struct {
	Platform string `json:"platform"`
	ID       string `json:"channelId"`
}

func (k ChannelKey) String() string {
	return k.Platform + ":" + k.ID
}

func (k ChannelKey) IsZero() bool {
	return k.ID == ""
}

// Channel is a collected content channel with its tag and cluster state.
type Channel struct {
	ChannelID    string `json:"channelId"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Platform     string `json:"platform"`
	Subscribers  int64  `json:"subscribers"`
	VideoCount   int64  `json:"videoCount"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	CustomURL    string `json:"customUrl"`

	ContentType ContentType `json:"contentType"`

	Keywords        []string `json:"keywords"`        // 사용자 입력 키워드
	AITags          []string `json:"aiTags"`          // AI 추출 태그
	DeepInsightTags []string `json:"deepInsightTags"` // 심층 분석 태그
	AllTags         []string `json:"allTags"`         // 통합 태그

	ClusterIDs        []string            `json:"clusterIds"`
	SuggestedClusters []ClusterSuggestion `json:"suggestedClusters"`

	Analysis *ChannelAnalysis `json:"analysis,omitempty"`

	CollectedAt time.Time `json:"collectedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Version     int       `json:"version"`
}

func (c *Channel) Key() ChannelKey {
	return ChannelKey{Platform: c.Platform, ID: c.ChannelID}
}

// IsClustered reports whether the channel belongs to at least one cluster.
func (c *Channel) IsClustered() bool {
	return len(c.ClusterIDs) > 0
}

// MergeAllTags rebuilds AllTags as the first-seen-order union of user
// keywords, AI tags and deep-insight tags, without duplicates. Only the
// strongest AI tags make the cut; user keywords always survive.
func (c *Channel) MergeAllTags() {
	aiTags := c.AITags
	if len(aiTags) > constants.TagLimits.MaxAITagsMerged {
		aiTags = aiTags[:constants.TagLimits.MaxAITagsMerged]
	}
	merged := make([]string, 0, len(c.Keywords)+len(aiTags)+len(c.DeepInsightTags))
	merged = append(merged, c.Keywords...)
	merged = append(merged, aiTags...)
	merged = append(merged, c.DeepInsightTags...)
	c.AllTags = util.UniqueStrings(merged)
}

// DeriveChannelID extracts a stable channel id from a channel URL. Supported
// shapes: /channel/<id>, /c/<custom>, /@<handle>. Anything else gets a
// generated id.
func DeriveChannelID(url string) string {
	if url == "" {
		return GenerateChannelID()
	}

	for _, marker := range []string{"/channel/", "/c/", "/@"} {
		idx := strings.Index(url, marker)
		if idx == -1 {
			continue
		}
		rest := url[idx+len(marker):]
		if slash := strings.IndexByte(rest, '/'); slash != -1 {
			rest = rest[:slash]
		}
		if rest != "" {
			return rest
		}
	}

	return GenerateChannelID()
}

// GenerateChannelID mints an id for channels whose URL carries none.
func GenerateChannelID() string {
	return fmt.Sprintf("ch_%d_%s", time.Now().UnixMilli(), randomToken(9))
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomToken(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenAlphabet[rand.Intn(len(tokenAlphabet))]
	}
	return string(b)
}
