// Package collector orchestrates the channel pipeline: metadata
// resolution, tag extraction, cluster suggestion, and persistence.
package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/internal/similarity"
	"github.com/kapu/channel-insight-go/internal/store"
	"github.com/kapu/channel-insight-go/internal/util"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ChannelRepository is the channel persistence surface the collector needs.
type ChannelRepository interface {
	CreateOrUpdate(ctx context.Context, channel *domain.Channel) (*domain.Channel, error)
	FindByKey(ctx context.Context, key domain.ChannelKey) (*domain.Channel, error)
	GetRecent(ctx context.Context, limit int) ([]*domain.Channel, error)
	GetUnclustered(ctx context.Context) ([]*domain.Channel, error)
	TotalCount(ctx context.Context) (int, error)
	UnclusteredCount(ctx context.Context) (int, error)
	AssignToCluster(ctx context.Context, key domain.ChannelKey, clusterID string) (*domain.Channel, error)
	RemoveFromCluster(ctx context.Context, key domain.ChannelKey, clusterID string) (*domain.Channel, error)
	Delete(ctx context.Context, key domain.ChannelKey) (bool, error)
}

// ClusterRepository is the cluster persistence surface the collector needs.
type ClusterRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Cluster, error)
	GetAll(ctx context.Context) ([]*domain.Cluster, error)
	GetAllActive(ctx context.Context) ([]*domain.Cluster, error)
	AddChannel(ctx context.Context, id string, key domain.ChannelKey) (*domain.Cluster, error)
	RemoveChannel(ctx context.Context, id string, key domain.ChannelKey) (*domain.Cluster, error)
	UpdateStatistics(ctx context.Context, id string, members []*domain.Channel) (*domain.Cluster, error)
	TotalCount(ctx context.Context) (int, error)
}

// TagExtractor produces the tag list for a channel.
type TagExtractor interface {
	Extract(ctx context.Context, channel *domain.Channel, contentType domain.ContentType) []string
}

// MetadataProvider resolves public channel information for inputs that
// carry only a reference.
type MetadataProvider interface {
	FetchChannel(ctx context.Context, channelID string) (*domain.ChannelMetadata, error)
}

// CollectInput is the raw material for a collection run. Either URL or
// ChannelID must be set; everything else is optional.
type CollectInput struct {
	URL          string
	ChannelID    string
	Platform     string
	Name         string
	Description  string
	Subscribers  int64
	VideoCount   int64
	ThumbnailURL string
	UserKeywords []string
	ContentType  domain.ContentType
	Analysis     *domain.ChannelAnalysis
}

// CollectStats summarizes where a collected channel's tags came from.
type CollectStats struct {
	UserKeywords int `json:"userKeywords"`
	AITags       int `json:"aiTags"`
	TotalTags    int `json:"totalTags"`
}

// CollectResult reports one collection run. On failure nothing was
// persisted and Success is false.
type CollectResult struct {
	Success            bool                       `json:"success"`
	Channel            *domain.Channel            `json:"channel,omitempty"`
	ClusterSuggestions []domain.ClusterSuggestion `json:"clusterSuggestions"`
	AutoAssigned       []string                   `json:"autoAssigned,omitempty"`
	Stats              CollectStats               `json:"stats"`
	Error              string                     `json:"error,omitempty"`
}

// Options control the suggestion and grouping behavior.
type Options struct {
	SuggestionThreshold float64
	GroupThreshold      float64
	MinGroupSize        int
	CompareToGroup      bool
}

func (o Options) withDefaults() Options {
	if o.SuggestionThreshold == 0 {
		o.SuggestionThreshold = constants.Similarity.SuggestionCutoff
	}
	if o.GroupThreshold == 0 {
		o.GroupThreshold = constants.Similarity.GroupThreshold
	}
	if o.MinGroupSize == 0 {
		o.MinGroupSize = constants.Similarity.MinGroupSize
	}
	return o
}

type Collector struct {
	channels  ChannelRepository
	clusters  ClusterRepository
	extractor TagExtractor
	metadata  MetadataProvider
	opts      Options
	logger    *zap.Logger
}

// NewCollector wires the pipeline. metadata may be nil when no provider is
// configured; inputs must then carry their own name and statistics.
func NewCollector(channels ChannelRepository, clusters ClusterRepository, extractor TagExtractor, metadata MetadataProvider, opts Options, logger *zap.Logger) *Collector {
	return &Collector{
		channels:  channels,
		clusters:  clusters,
		extractor: extractor,
		metadata:  metadata,
		opts:      opts.withDefaults(),
		logger:    logger,
	}
}

// CollectChannel runs the full pipeline for one channel: normalize the
// input, extract tags, rank cluster suggestions, auto-assign where a
// cluster opted in, and persist. Persistence happens last so a failed run
// leaves no partial state behind.
func (c *Collector) CollectChannel(ctx context.Context, input CollectInput) (result *CollectResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("collect pipeline panicked", zap.Any("panic", r))
			err = fmt.Errorf("collect pipeline panicked: %v", r)
			result = &CollectResult{Success: false, Error: err.Error()}
		}
	}()

	channel, err := c.normalizeInput(input)
	if err != nil {
		return &CollectResult{Success: false, Error: err.Error()}, err
	}
	c.enrichFromMetadata(ctx, channel)

	contentType := c.resolveContentType(channel, input)
	channel.ContentType = contentType

	aiTags := c.extractor.Extract(ctx, channel, contentType)
	channel.AITags = aiTags
	channel.Keywords = input.UserKeywords
	channel.MergeAllTags()

	suggestions, err := c.suggestClustersFor(ctx, channel)
	if err != nil {
		return &CollectResult{Success: false, Error: err.Error()}, err
	}
	channel.SuggestedClusters = suggestions

	autoAssigned := make([]string, 0)
	for _, suggestion := range suggestions {
		if suggestion.Cluster.AutoAdd && suggestion.Similarity >= suggestion.Cluster.Threshold {
			channel.ClusterIDs = append(channel.ClusterIDs, suggestion.Cluster.ID)
			autoAssigned = append(autoAssigned, suggestion.Cluster.ID)
		}
	}

	persisted, err := c.channels.CreateOrUpdate(ctx, channel)
	if err != nil {
		return &CollectResult{Success: false, Error: err.Error()}, err
	}

	for _, clusterID := range autoAssigned {
		if _, err := c.clusters.AddChannel(ctx, clusterID, persisted.Key()); err != nil {
			c.logger.Warn("Auto-assign membership write failed",
				zap.String("cluster", clusterID),
				zap.Error(err))
		}
	}

	c.logger.Info("Channel collected",
		zap.String("key", persisted.Key().String()),
		zap.String("name", persisted.Name),
		zap.Int("tags", len(persisted.AllTags)),
		zap.Int("suggestions", len(suggestions)),
		zap.Int("autoAssigned", len(autoAssigned)),
	)

	return &CollectResult{
		Success:            true,
		Channel:            persisted,
		ClusterSuggestions: suggestions,
		AutoAssigned:       autoAssigned,
		Stats: CollectStats{
			UserKeywords: len(input.UserKeywords),
			AITags:       len(aiTags),
			TotalTags:    len(persisted.AllTags),
		},
	}, nil
}

func (c *Collector) normalizeInput(input CollectInput) (*domain.Channel, error) {
	channelID := input.ChannelID
	if channelID == "" && input.URL != "" {
		channelID = domain.DeriveChannelID(input.URL)
	}
	if channelID == "" {
		if input.Name == "" {
			return nil, fmt.Errorf("collect input needs a URL, channel id, or name")
		}
		channelID = domain.GenerateChannelID()
	}

	platform := input.Platform
	if platform == "" {
		platform = "youtube"
	}

	return &domain.Channel{
		ChannelID:    channelID,
		Name:         input.Name,
		URL:          input.URL,
		Platform:     platform,
		Subscribers:  input.Subscribers,
		VideoCount:   input.VideoCount,
		Description:  input.Description,
		ThumbnailURL: input.ThumbnailURL,
		Analysis:     input.Analysis,
	}, nil
}

// enrichFromMetadata fills gaps in the input from the configured provider.
// Lookup failures are logged and skipped; the caller's data always wins.
func (c *Collector) enrichFromMetadata(ctx context.Context, channel *domain.Channel) {
	if c.metadata == nil || channel.Platform != "youtube" {
		return
	}
	if channel.Name != "" && channel.Subscribers > 0 {
		return
	}
	meta, err := c.metadata.FetchChannel(ctx, channel.ChannelID)
	if err != nil {
		c.logger.Warn("metadata lookup failed",
			zap.String("channelId", channel.ChannelID),
			zap.Error(err))
		return
	}
	if channel.Name == "" {
		channel.Name = meta.Name
	}
	if channel.Description == "" {
		channel.Description = meta.Description
	}
	if channel.Subscribers == 0 {
		channel.Subscribers = meta.Subscribers
	}
	if channel.VideoCount == 0 {
		channel.VideoCount = meta.VideoCount
	}
	if channel.ThumbnailURL == "" {
		channel.ThumbnailURL = meta.ThumbnailURL
	}
	if channel.URL == "" {
		channel.URL = meta.URL
	}
}

func (c *Collector) resolveContentType(channel *domain.Channel, input CollectInput) domain.ContentType {
	if input.Analysis != nil {
		return domain.ClassifyContentType(input.Analysis.ShortformRatio, true)
	}
	if input.ContentType != "" {
		return input.ContentType
	}
	return domain.ContentTypeUnknown
}

// suggestClustersFor ranks the active clusters by tag similarity and keeps
// the strongest matches above the cutoff.
func (c *Collector) suggestClustersFor(ctx context.Context, channel *domain.Channel) ([]domain.ClusterSuggestion, error) {
	active, err := c.clusters.GetAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active clusters: %w", err)
	}

	suggestions := make([]domain.ClusterSuggestion, 0)
	for _, cluster := range active {
		score := similarity.TagSimilarity(channel.AllTags, cluster.CommonTags)
		if score <= c.opts.SuggestionThreshold {
			continue
		}
		suggestions = append(suggestions, domain.ClusterSuggestion{
			Cluster:    cluster,
			Similarity: score,
			Reason:     suggestionReason(channel.AllTags, cluster.CommonTags),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Similarity > suggestions[j].Similarity
	})
	if len(suggestions) > constants.Similarity.MaxSuggestions {
		suggestions = suggestions[:constants.Similarity.MaxSuggestions]
	}
	return suggestions, nil
}

func suggestionReason(channelTags, clusterTags []string) string {
	shared := make([]string, 0)
	for _, tag := range util.UniqueStrings(channelTags) {
		if util.Contains(clusterTags, tag) {
			shared = append(shared, tag)
		}
	}
	return "공통 태그: " + strings.Join(shared, ", ")
}

// SuggestNewClusters proposes fresh clusters from the channels that belong
// to none yet. Needs at least the configured minimum of unclustered
// channels to say anything.
func (c *Collector) SuggestNewClusters(ctx context.Context) ([]domain.ClusterProposal, error) {
	unclustered, err := c.channels.GetUnclustered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load unclustered channels: %w", err)
	}
	if len(unclustered) < c.opts.MinGroupSize {
		return []domain.ClusterProposal{}, nil
	}

	groups := similarity.FindSimilarGroups(unclustered, similarity.GroupOptions{
		Threshold:      c.opts.GroupThreshold,
		MinGroupSize:   c.opts.MinGroupSize,
		CompareToGroup: c.opts.CompareToGroup,
	})

	proposals := make([]domain.ClusterProposal, 0, len(groups))
	for _, group := range groups {
		proposals = append(proposals, domain.ClusterProposal{
			SuggestedName: proposalName(group.CommonTags),
			Channels:      group.Channels,
			CommonTags:    group.CommonTags,
			Confidence:    group.AvgSimilarity,
		})
	}

	c.logger.Info("New cluster proposals computed",
		zap.Int("unclustered", len(unclustered)),
		zap.Int("proposals", len(proposals)),
	)
	return proposals, nil
}

func proposalName(commonTags []domain.TagFrequency) string {
	if len(commonTags) == 0 {
		return "새 그룹"
	}
	return commonTags[0].Tag + " 채널들"
}

// EvaluateClusterFit scores how well a channel fits an existing cluster,
// using the cluster's current members for the member-similarity component.
func (c *Collector) EvaluateClusterFit(ctx context.Context, key domain.ChannelKey, clusterID string) (*domain.FitScore, error) {
	channel, err := c.channels.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, fmt.Errorf("channel %s not found", key.String())
	}

	cluster, err := c.clusters.FindByID(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	members, err := c.clusterMembers(ctx, cluster)
	if err != nil {
		return nil, err
	}
	return similarity.ClusterFitScore(channel, cluster, members), nil
}

// AssignChannelToCluster links both sides of the membership and refreshes
// the cluster's statistics.
func (c *Collector) AssignChannelToCluster(ctx context.Context, key domain.ChannelKey, clusterID string) error {
	cluster, err := c.clusters.FindByID(ctx, clusterID)
	if err != nil {
		return err
	}

	if _, err := c.channels.AssignToCluster(ctx, key, cluster.ID); err != nil {
		return err
	}
	if _, err := c.clusters.AddChannel(ctx, cluster.ID, key); err != nil {
		return err
	}
	return c.refreshOne(ctx, cluster.ID)
}

// UnassignChannel removes the membership from both sides and refreshes the
// cluster's statistics.
func (c *Collector) UnassignChannel(ctx context.Context, key domain.ChannelKey, clusterID string) error {
	if _, err := c.channels.RemoveFromCluster(ctx, key, clusterID); err != nil {
		return err
	}
	if _, err := c.clusters.RemoveChannel(ctx, clusterID, key); err != nil {
		return err
	}
	return c.refreshOne(ctx, clusterID)
}

// DeleteChannel removes the channel and detaches it from every cluster
// that still references it.
func (c *Collector) DeleteChannel(ctx context.Context, key domain.ChannelKey) (bool, error) {
	channel, err := c.channels.FindByKey(ctx, key)
	if err != nil {
		return false, err
	}
	if channel == nil {
		return false, nil
	}

	for _, clusterID := range channel.ClusterIDs {
		if _, err := c.clusters.RemoveChannel(ctx, clusterID, key); err != nil {
			c.logger.Warn("Cluster detach failed during channel delete",
				zap.String("cluster", clusterID),
				zap.Error(err))
		}
	}
	return c.channels.Delete(ctx, key)
}

// GetRecentKeywords counts the user-supplied keywords across the most
// recently collected channels, most frequent first. AI and rule tags are
// excluded on purpose.
func (c *Collector) GetRecentKeywords(ctx context.Context, limit int) ([]domain.KeywordCount, error) {
	recent, err := c.channels.GetRecent(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent channels: %w", err)
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, channel := range recent {
		for _, keyword := range channel.Keywords {
			if counts[keyword] == 0 {
				order = append(order, keyword)
			}
			counts[keyword]++
		}
	}

	keywords := make([]domain.KeywordCount, 0, len(order))
	for _, tag := range order {
		keywords = append(keywords, domain.KeywordCount{Keyword: tag, Count: counts[tag]})
	}
	sort.SliceStable(keywords, func(i, j int) bool {
		return keywords[i].Count > keywords[j].Count
	})

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords, nil
}

// GetStatistics summarizes the engine's current coverage.
func (c *Collector) GetStatistics(ctx context.Context) (*domain.EngineStatistics, error) {
	totalChannels, err := c.channels.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	totalClusters, err := c.clusters.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	unclustered, err := c.channels.UnclusteredCount(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.EngineStatistics{
		TotalChannels:    totalChannels,
		TotalClusters:    totalClusters,
		UnclusteredCount: unclustered,
	}
	if totalChannels > 0 {
		clustered := totalChannels - unclustered
		stats.ClusteredPercentage = util.Round2(float64(clustered) / float64(totalChannels) * 100)
	}
	return stats, nil
}

// RefreshClusterStatistics recomputes subscriber aggregates for every
// cluster, fanning out with a bounded worker pool.
func (c *Collector) RefreshClusterStatistics(ctx context.Context) error {
	clusters, err := c.clusters.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load clusters: %w", err)
	}

	p := pool.New().
		WithErrors().
		WithContext(ctx).
		WithMaxGoroutines(constants.StatsRefresh.Concurrency)

	for _, cluster := range clusters {
		clusterID := cluster.ID
		p.Go(func(ctx context.Context) error {
			return c.refreshOne(ctx, clusterID)
		})
	}

	if err := p.Wait(); err != nil {
		return fmt.Errorf("cluster statistics refresh failed: %w", err)
	}

	c.logger.Info("Cluster statistics refreshed", zap.Int("clusters", len(clusters)))
	return nil
}

func (c *Collector) refreshOne(ctx context.Context, clusterID string) error {
	cluster, err := c.clusters.FindByID(ctx, clusterID)
	if err != nil {
		return err
	}

	members, err := c.clusterMembers(ctx, cluster)
	if err != nil {
		return err
	}
	_, err = c.clusters.UpdateStatistics(ctx, clusterID, members)
	return err
}

func (c *Collector) clusterMembers(ctx context.Context, cluster *domain.Cluster) ([]*domain.Channel, error) {
	members := make([]*domain.Channel, 0, len(cluster.ChannelIDs))
	for _, ref := range cluster.ChannelIDs {
		key, err := parseChannelRef(ref)
		if err != nil {
			c.logger.Warn("Skipping malformed channel reference",
				zap.String("cluster", cluster.ID),
				zap.String("ref", ref))
			continue
		}
		channel, err := c.channels.FindByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if channel != nil {
			members = append(members, channel)
		}
	}
	return members, nil
}

func parseChannelRef(ref string) (domain.ChannelKey, error) {
	platform, id, found := strings.Cut(ref, ":")
	if !found || platform == "" || id == "" {
		return domain.ChannelKey{}, fmt.Errorf("invalid channel reference %q", ref)
	}
	return domain.ChannelKey{Platform: platform, ID: id}, nil
}

var _ ChannelRepository = (*store.ChannelStore)(nil)
var _ ClusterRepository = (*store.ClusterStore)(nil)
