package constants

import "time"

var CacheTTL = struct {
	ChannelTags     time.Duration
	ChannelMetadata time.Duration
	ChannelRead     time.Duration
	ClusterRead     time.Duration
}{
	ChannelTags:     60 * time.Minute, // 1시간 - 태그 추출 결과
	ChannelMetadata: 20 * time.Minute, // 20분 - 채널 메타데이터
	ChannelRead:     5 * time.Minute,  // 5분 - 채널 read-through
	ClusterRead:     5 * time.Minute,  // 5분 - 클러스터 read-through
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
}{
	ReadyTimeout: 5 * time.Second,
}

var AIConfig = struct {
	TagExtractionTimeout time.Duration
	TagMaxOutputTokens   int
	MaxPromptDescription int
}{
	TagExtractionTimeout: 15 * time.Second,
	TagMaxOutputTokens:   200,
	MaxPromptDescription: 500,
}

// Similarity holds the scoring defaults shared by the calculator and the
// collector. Values mirror the tuned production weights.
var Similarity = struct {
	TagWeight          float64
	SubscriberWeight   float64
	PlatformWeight     float64
	DescriptionWeight  float64
	FitTagWeight       float64
	FitMemberWeight    float64
	SuggestionCutoff   float64
	MaxSuggestions     int
	GroupThreshold     float64
	MinGroupSize       int
	CommonTagFrequency float64
}{
	TagWeight:          0.6,
	SubscriberWeight:   0.2,
	PlatformWeight:     0.1,
	DescriptionWeight:  0.1,
	FitTagWeight:       0.7,
	FitMemberWeight:    0.3,
	SuggestionCutoff:   0.5,
	MaxSuggestions:     3,
	GroupThreshold:     0.6,
	MinGroupSize:       3,
	CommonTagFrequency: 0.5,
}

var SubscriberBuckets = struct {
	Mega   int64
	Large  int64
	Medium int64
	Small  int64
}{
	Mega:   1_000_000,
	Large:  100_000,
	Medium: 10_000,
	Small:  1_000,
}

var TagLimits = struct {
	MaxTags         int
	MaxTagLength    int
	MaxAITagsMerged int
}{
	MaxTags:         10,
	MaxTagLength:    10,
	MaxAITagsMerged: 5,
}

var Cluster = struct {
	DefaultThreshold float64
	DefaultColor     string
	Colors           []string
}{
	DefaultThreshold: 0.6,
	DefaultColor:     "#007bff",
	Colors: []string{
		"#007bff", "#28a745", "#dc3545", "#ffc107", "#17a2b8",
		"#6f42c1", "#e83e8c", "#fd7e14", "#20c997", "#6610f2",
	},
}

var YouTubeConfig = struct {
	DailyQuotaLimit   int
	ChannelsQuotaCost int
	QuotaSafetyMargin int
}{
	DailyQuotaLimit:   10000,
	ChannelsQuotaCost: 1,
	QuotaSafetyMargin: 2000,
}

var StatsRefresh = struct {
	Concurrency int
	Interval    time.Duration
}{
	Concurrency: 8,
	Interval:    30 * time.Minute,
}
