// Package store owns persistence for channels and clusters. Rows live in
// PostgreSQL with tag and membership lists as JSONB; Redis keys are used
// only as read-through caches and are invalidated on every write.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kapu/channel-insight-go/internal/domain"
	"go.uber.org/zap"
)

// Invalidator is the slice of the cache service the stores need to drop
// stale read-through entries after a write.
type Invalidator interface {
	Del(ctx context.Context, keys ...string) error
}

const channelColumns = `platform, channel_id, name, url, subscribers, video_count,
	description, thumbnail_url, custom_url, content_type,
	keywords, ai_tags, deep_insight_tags, all_tags,
	cluster_ids, suggested_clusters, analysis,
	collected_at, updated_at, version`

type ChannelStore struct {
	db     *sql.DB
	cache  Invalidator
	logger *zap.Logger
}

func NewChannelStore(db *sql.DB, cache Invalidator, logger *zap.Logger) *ChannelStore {
	return &ChannelStore{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// CreateOrUpdate upserts a channel by its compound (platform, channelId)
// key. The first collection timestamp is preserved across updates and the
// version increments on every rewrite.
func (s *ChannelStore) CreateOrUpdate(ctx context.Context, channel *domain.Channel) (*domain.Channel, error) {
	if channel.ChannelID == "" {
		return nil, fmt.Errorf("channel id must not be empty")
	}
	if channel.Platform == "" {
		channel.Platform = "youtube"
	}

	existing, err := s.FindByKey(ctx, channel.Key())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing != nil {
		channel.CollectedAt = existing.CollectedAt
		channel.Version = existing.Version + 1
		if len(channel.ClusterIDs) == 0 {
			channel.ClusterIDs = existing.ClusterIDs
		}
		s.logger.Info("Updating channel",
			zap.String("key", channel.Key().String()),
			zap.String("name", channel.Name),
		)
	} else {
		if channel.CollectedAt.IsZero() {
			channel.CollectedAt = now
		}
		channel.Version = 1
		s.logger.Info("Creating channel",
			zap.String("key", channel.Key().String()),
			zap.String("name", channel.Name),
		)
	}
	channel.UpdatedAt = now

	if channel.ContentType == "" {
		channel.ContentType = domain.ContentTypeUnknown
	}

	keywords, aiTags, deepTags, allTags, clusterIDs, suggested, analysis, err := marshalChannelJSON(channel)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO channels (` + channelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (platform, channel_id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			subscribers = EXCLUDED.subscribers,
			video_count = EXCLUDED.video_count,
			description = EXCLUDED.description,
			thumbnail_url = EXCLUDED.thumbnail_url,
			custom_url = EXCLUDED.custom_url,
			content_type = EXCLUDED.content_type,
			keywords = EXCLUDED.keywords,
			ai_tags = EXCLUDED.ai_tags,
			deep_insight_tags = EXCLUDED.deep_insight_tags,
			all_tags = EXCLUDED.all_tags,
			cluster_ids = EXCLUDED.cluster_ids,
			suggested_clusters = EXCLUDED.suggested_clusters,
			analysis = EXCLUDED.analysis,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
	`

	_, err = s.db.ExecContext(ctx, query,
		channel.Platform, channel.ChannelID, channel.Name, channel.URL,
		channel.Subscribers, channel.VideoCount, channel.Description,
		channel.ThumbnailURL, channel.CustomURL, string(channel.ContentType),
		keywords, aiTags, deepTags, allTags, clusterIDs, suggested, analysis,
		channel.CollectedAt, channel.UpdatedAt, channel.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert channel: %w", err)
	}

	s.invalidate(ctx, channel.Key())
	return channel, nil
}

// FindByKey returns the channel or nil when the key is unknown.
func (s *ChannelStore) FindByKey(ctx context.Context, key domain.ChannelKey) (*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE platform = $1 AND channel_id = $2 LIMIT 1`

	channel, err := scanChannel(s.db.QueryRowContext(ctx, query, key.Platform, key.ID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query channel by key: %w", err)
	}
	return channel, nil
}

// FindByName returns channels whose name contains the substring,
// case-insensitively.
func (s *ChannelStore) FindByName(ctx context.Context, name string) ([]*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE name ILIKE '%' || $1 || '%' ORDER BY collected_at DESC`
	return s.queryChannels(ctx, query, name)
}

// FindByTag returns channels whose tag list contains the tag,
// case-insensitively.
func (s *ChannelStore) FindByTag(ctx context.Context, tag string) ([]*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE all_tags::text ILIKE '%' || $1 || '%' ORDER BY collected_at DESC`
	return s.queryChannels(ctx, query, tag)
}

func (s *ChannelStore) GetAll(ctx context.Context) ([]*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels ORDER BY collected_at DESC`
	return s.queryChannels(ctx, query)
}

// GetRecent returns the most recently collected channels.
func (s *ChannelStore) GetRecent(ctx context.Context, limit int) ([]*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels ORDER BY collected_at DESC LIMIT $1`
	return s.queryChannels(ctx, query, limit)
}

// GetUnclustered returns channels that belong to no cluster.
func (s *ChannelStore) GetUnclustered(ctx context.Context) ([]*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels
		WHERE cluster_ids IS NULL OR jsonb_array_length(cluster_ids) = 0
		ORDER BY collected_at DESC`
	return s.queryChannels(ctx, query)
}

func (s *ChannelStore) TotalCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count channels: %w", err)
	}
	return count, nil
}

func (s *ChannelStore) UnclusteredCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channels WHERE cluster_ids IS NULL OR jsonb_array_length(cluster_ids) = 0`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unclustered channels: %w", err)
	}
	return count, nil
}

// AssignToCluster adds the cluster id to the channel's membership list.
// Idempotent.
func (s *ChannelStore) AssignToCluster(ctx context.Context, key domain.ChannelKey, clusterID string) (*domain.Channel, error) {
	return s.mutateClusterIDs(ctx, key, func(ids []string) []string {
		for _, id := range ids {
			if id == clusterID {
				return ids
			}
		}
		return append(ids, clusterID)
	})
}

// RemoveFromCluster drops the cluster id from the channel's membership
// list. Idempotent.
func (s *ChannelStore) RemoveFromCluster(ctx context.Context, key domain.ChannelKey, clusterID string) (*domain.Channel, error) {
	return s.mutateClusterIDs(ctx, key, func(ids []string) []string {
		filtered := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != clusterID {
				filtered = append(filtered, id)
			}
		}
		return filtered
	})
}

// Delete removes the channel row. Detaching the channel from clusters that
// reference it is the collector's job; the store does not cascade.
func (s *ChannelStore) Delete(ctx context.Context, key domain.ChannelKey) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM channels WHERE platform = $1 AND channel_id = $2`,
		key.Platform, key.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete channel: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected > 0 {
		s.logger.Info("Channel deleted", zap.String("key", key.String()))
		s.invalidate(ctx, key)
	}
	return affected > 0, nil
}

func (s *ChannelStore) mutateClusterIDs(ctx context.Context, key domain.ChannelKey, mutate func([]string) []string) (*domain.Channel, error) {
	channel, err := s.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, notFoundChannel(key)
	}

	channel.ClusterIDs = mutate(channel.ClusterIDs)
	channel.UpdatedAt = time.Now()

	clusterIDs, err := json.Marshal(channel.ClusterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cluster ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE channels SET cluster_ids = $1, updated_at = $2 WHERE platform = $3 AND channel_id = $4`,
		clusterIDs, channel.UpdatedAt, key.Platform, key.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update channel membership: %w", err)
	}

	s.invalidate(ctx, key)
	return channel, nil
}

func (s *ChannelStore) queryChannels(ctx context.Context, query string, args ...any) ([]*domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	channels := make([]*domain.Channel, 0)
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

func (s *ChannelStore) invalidate(ctx context.Context, key domain.ChannelKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, "channels:recent", "channels:unclustered", "channel:"+key.String()); err != nil {
		s.logger.Warn("Channel cache invalidation failed", zap.Error(err))
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*domain.Channel, error) {
	var (
		channel     domain.Channel
		contentType string
		keywords    []byte
		aiTags      []byte
		deepTags    []byte
		allTags     []byte
		clusterIDs  []byte
		suggested   []byte
		analysis    []byte
	)

	err := row.Scan(
		&channel.Platform, &channel.ChannelID, &channel.Name, &channel.URL,
		&channel.Subscribers, &channel.VideoCount, &channel.Description,
		&channel.ThumbnailURL, &channel.CustomURL, &contentType,
		&keywords, &aiTags, &deepTags, &allTags, &clusterIDs, &suggested, &analysis,
		&channel.CollectedAt, &channel.UpdatedAt, &channel.Version,
	)
	if err != nil {
		return nil, err
	}

	channel.ContentType = domain.ContentType(contentType)

	for _, field := range []struct {
		data []byte
		dest any
	}{
		{keywords, &channel.Keywords},
		{aiTags, &channel.AITags},
		{deepTags, &channel.DeepInsightTags},
		{allTags, &channel.AllTags},
		{clusterIDs, &channel.ClusterIDs},
		{suggested, &channel.SuggestedClusters},
	} {
		if len(field.data) > 0 {
			if err := json.Unmarshal(field.data, field.dest); err != nil {
				return nil, fmt.Errorf("failed to decode channel field: %w", err)
			}
		}
	}

	if len(analysis) > 0 && string(analysis) != "null" {
		channel.Analysis = &domain.ChannelAnalysis{}
		if err := json.Unmarshal(analysis, channel.Analysis); err != nil {
			return nil, fmt.Errorf("failed to decode channel analysis: %w", err)
		}
	}

	return &channel, nil
}

func marshalChannelJSON(channel *domain.Channel) (keywords, aiTags, deepTags, allTags, clusterIDs, suggested, analysis []byte, err error) {
	marshal := func(v any) []byte {
		if err != nil {
			return nil
		}
		var data []byte
		data, err = json.Marshal(v)
		return data
	}

	keywords = marshal(orEmpty(channel.Keywords))
	aiTags = marshal(orEmpty(channel.AITags))
	deepTags = marshal(orEmpty(channel.DeepInsightTags))
	allTags = marshal(orEmpty(channel.AllTags))
	clusterIDs = marshal(orEmpty(channel.ClusterIDs))
	if channel.SuggestedClusters == nil {
		suggested = marshal([]domain.ClusterSuggestion{})
	} else {
		suggested = marshal(channel.SuggestedClusters)
	}
	analysis = marshal(channel.Analysis)
	if err != nil {
		err = fmt.Errorf("failed to marshal channel fields: %w", err)
	}
	return
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
