package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/internal/util"
	"go.uber.org/zap"
)

const clusterColumns = `id, name, description, color, common_tags, keyword_patterns,
	threshold, auto_add, channel_ids, channel_count,
	total_subscribers, avg_subscribers, avg_channel_size,
	is_active, created_by, created_at, updated_at, version`

// ClusterPatch carries the fields Update is allowed to change. Nil fields
// are left untouched; membership and statistics never go through a patch.
type ClusterPatch struct {
	Name            *string
	Description     *string
	CommonTags      []string
	KeywordPatterns []string
	AutoAdd         *bool
	Threshold       *float64
	Color           *string
	IsActive        *bool
}

type ClusterStore struct {
	db     *sql.DB
	cache  Invalidator
	logger *zap.Logger
}

func NewClusterStore(db *sql.DB, cache Invalidator, logger *zap.Logger) *ClusterStore {
	return &ClusterStore{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// Create inserts a new cluster with generated id and defaults filled in.
// When no color is given the first palette color not used by an existing
// cluster is assigned.
func (s *ClusterStore) Create(ctx context.Context, cluster *domain.Cluster) (*domain.Cluster, error) {
	if cluster.Name == "" {
		return nil, fmt.Errorf("cluster name must not be empty")
	}

	now := time.Now()
	cluster.ID = domain.GenerateClusterID()
	cluster.CreatedAt = now
	cluster.UpdatedAt = now
	cluster.Version = 1
	cluster.IsActive = true
	if cluster.Threshold == 0 {
		cluster.Threshold = constants.Cluster.DefaultThreshold
	}
	if cluster.CreatedBy == "" {
		cluster.CreatedBy = domain.ClusterCreatedByUser
	}
	if cluster.Color == "" {
		used, err := s.usedColors(ctx, s.db)
		if err != nil {
			return nil, err
		}
		cluster.Color = NextColor(used)
	}
	cluster.ChannelIDs = orEmpty(cluster.ChannelIDs)
	cluster.ChannelCount = len(cluster.ChannelIDs)

	if err := s.insertClusterTx(ctx, s.db, cluster); err != nil {
		return nil, err
	}

	s.logger.Info("Cluster created",
		zap.String("id", cluster.ID),
		zap.String("name", cluster.Name),
		zap.String("createdBy", cluster.CreatedBy),
	)
	s.invalidate(ctx, cluster.ID)
	return cluster, nil
}

// Update applies a patch to the cluster and bumps its version.
func (s *ClusterStore) Update(ctx context.Context, id string, patch ClusterPatch) (*domain.Cluster, error) {
	cluster, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ApplyClusterPatch(cluster, patch)
	cluster.UpdatedAt = time.Now()
	cluster.Version++

	if err := s.saveCluster(ctx, s.db, cluster); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return cluster, nil
}

// AddChannel appends the channel key to the cluster membership. Idempotent.
func (s *ClusterStore) AddChannel(ctx context.Context, id string, key domain.ChannelKey) (*domain.Cluster, error) {
	return s.mutateMembership(ctx, id, func(cluster *domain.Cluster) {
		ref := key.String()
		if cluster.HasChannel(ref) {
			return
		}
		cluster.ChannelIDs = append(cluster.ChannelIDs, ref)
	})
}

// RemoveChannel drops the channel key from the cluster membership.
// Idempotent.
func (s *ClusterStore) RemoveChannel(ctx context.Context, id string, key domain.ChannelKey) (*domain.Cluster, error) {
	return s.mutateMembership(ctx, id, func(cluster *domain.Cluster) {
		ref := key.String()
		filtered := make([]string, 0, len(cluster.ChannelIDs))
		for _, existing := range cluster.ChannelIDs {
			if existing != ref {
				filtered = append(filtered, existing)
			}
		}
		cluster.ChannelIDs = filtered
	})
}

// UpdateStatistics recomputes the cluster's subscriber aggregates from the
// given member channels.
func (s *ClusterStore) UpdateStatistics(ctx context.Context, id string, members []*domain.Channel) (*domain.Cluster, error) {
	cluster, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	RecomputeStatistics(cluster, members)
	cluster.UpdatedAt = time.Now()

	if err := s.saveCluster(ctx, s.db, cluster); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return cluster, nil
}

// Merge folds the source cluster into the target inside one transaction:
// memberships and common tags are unioned, the source row is deleted, and
// the target's version bumps. An optional new name renames the target.
func (s *ClusterStore) Merge(ctx context.Context, sourceID, targetID, newName string) (*domain.Cluster, error) {
	if sourceID == targetID {
		return nil, fmt.Errorf("cannot merge a cluster into itself")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	source, err := s.findByIDTx(ctx, tx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.findByIDTx(ctx, tx, targetID)
	if err != nil {
		return nil, err
	}

	MergeInto(target, source, newName)
	target.UpdatedAt = time.Now()
	target.Version++

	if err := s.saveCluster(ctx, tx, target); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE id = $1`, sourceID); err != nil {
		return nil, fmt.Errorf("failed to delete merged cluster: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}

	s.logger.Info("Clusters merged",
		zap.String("source", sourceID),
		zap.String("target", targetID),
		zap.Int("channels", len(target.ChannelIDs)),
	)
	s.invalidate(ctx, sourceID, targetID)
	return target, nil
}

// Split moves the given channel keys out of a cluster into a freshly
// created one that inherits the original's common tags. Both rows are
// written in one transaction. Returns (original, new).
func (s *ClusterStore) Split(ctx context.Context, id, newName string, move []domain.ChannelKey) (*domain.Cluster, *domain.Cluster, error) {
	if newName == "" {
		return nil, nil, fmt.Errorf("split cluster name must not be empty")
	}
	if len(move) == 0 {
		return nil, nil, fmt.Errorf("split requires at least one channel to move")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin split transaction: %w", err)
	}
	defer tx.Rollback()

	original, err := s.findByIDTx(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	spun := SplitFrom(original, newName, move)
	spun.ID = domain.GenerateClusterID()
	spun.CreatedAt = now
	spun.UpdatedAt = now
	spun.Version = 1
	original.UpdatedAt = now
	original.Version++

	// Read through the open transaction so the color choice matches the
	// rows the split actually sees.
	used, err := s.usedColors(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	spun.Color = NextColor(used)

	if err := s.saveCluster(ctx, tx, original); err != nil {
		return nil, nil, err
	}
	if err := s.insertClusterTx(ctx, tx, spun); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit split: %w", err)
	}

	s.logger.Info("Cluster split",
		zap.String("original", original.ID),
		zap.String("new", spun.ID),
		zap.Int("moved", len(spun.ChannelIDs)),
	)
	s.invalidate(ctx, original.ID, spun.ID)
	return original, spun, nil
}

// Delete removes the cluster row. Membership references held by channels
// are cleaned up by the caller; the store does not cascade.
func (s *ClusterStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete cluster: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected > 0 {
		s.logger.Info("Cluster deleted", zap.String("id", id))
		s.invalidate(ctx, id)
	}
	return affected > 0, nil
}

// FindByID returns the cluster or a NotFoundError.
func (s *ClusterStore) FindByID(ctx context.Context, id string) (*domain.Cluster, error) {
	return s.findByIDTx(ctx, s.db, id)
}

func (s *ClusterStore) GetAll(ctx context.Context) ([]*domain.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters ORDER BY created_at ASC`
	return s.queryClusters(ctx, query)
}

func (s *ClusterStore) GetAllActive(ctx context.Context) ([]*domain.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE is_active = TRUE ORDER BY created_at ASC`
	return s.queryClusters(ctx, query)
}

func (s *ClusterStore) FindByName(ctx context.Context, name string) ([]*domain.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE name ILIKE '%' || $1 || '%' ORDER BY created_at ASC`
	return s.queryClusters(ctx, query, name)
}

func (s *ClusterStore) FindByTag(ctx context.Context, tag string) ([]*domain.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE common_tags::text ILIKE '%' || $1 || '%' ORDER BY created_at ASC`
	return s.queryClusters(ctx, query, tag)
}

func (s *ClusterStore) TotalCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count clusters: %w", err)
	}
	return count, nil
}

// ApplyClusterPatch copies the patch's non-nil fields onto the cluster.
func ApplyClusterPatch(cluster *domain.Cluster, patch ClusterPatch) {
	if patch.Name != nil {
		cluster.Name = *patch.Name
	}
	if patch.Description != nil {
		cluster.Description = *patch.Description
	}
	if patch.CommonTags != nil {
		cluster.CommonTags = patch.CommonTags
	}
	if patch.KeywordPatterns != nil {
		cluster.KeywordPatterns = patch.KeywordPatterns
	}
	if patch.AutoAdd != nil {
		cluster.AutoAdd = *patch.AutoAdd
	}
	if patch.Threshold != nil {
		cluster.Threshold = *patch.Threshold
	}
	if patch.Color != nil {
		cluster.Color = *patch.Color
	}
	if patch.IsActive != nil {
		cluster.IsActive = *patch.IsActive
	}
}

// NextColor picks the first palette color not already in use. With the
// palette exhausted it falls back to the default color.
func NextColor(used []string) string {
	taken := make(map[string]bool, len(used))
	for _, color := range used {
		taken[color] = true
	}
	for _, color := range constants.Cluster.Colors {
		if !taken[color] {
			return color
		}
	}
	return constants.Cluster.DefaultColor
}

// RecomputeStatistics refreshes count and subscriber aggregates from the
// member channels. An empty membership zeroes everything out.
func RecomputeStatistics(cluster *domain.Cluster, members []*domain.Channel) {
	cluster.ChannelCount = len(cluster.ChannelIDs)
	if len(members) == 0 {
		cluster.TotalSubscribers = 0
		cluster.AvgSubscribers = 0
		cluster.AvgChannelSize = 0
		return
	}

	var totalSubscribers, totalVideos int64
	for _, member := range members {
		totalSubscribers += member.Subscribers
		totalVideos += member.VideoCount
	}
	cluster.TotalSubscribers = totalSubscribers
	cluster.AvgSubscribers = totalSubscribers / int64(len(members))
	cluster.AvgChannelSize = totalVideos / int64(len(members))
}

// MergeInto unions the source cluster's membership and common tags into
// the target and optionally renames it.
func MergeInto(target, source *domain.Cluster, newName string) {
	target.ChannelIDs = util.UniqueStrings(append(target.ChannelIDs, source.ChannelIDs...))
	target.CommonTags = util.UniqueStrings(append(target.CommonTags, source.CommonTags...))
	target.ChannelCount = len(target.ChannelIDs)
	if newName != "" {
		target.Name = newName
	}
}

// SplitFrom removes the moved keys from the original's membership and
// returns a new cluster holding them, with the common tags copied over.
func SplitFrom(original *domain.Cluster, newName string, move []domain.ChannelKey) *domain.Cluster {
	moving := make(map[string]bool, len(move))
	for _, key := range move {
		moving[key.String()] = true
	}

	kept := make([]string, 0, len(original.ChannelIDs))
	moved := make([]string, 0, len(move))
	for _, ref := range original.ChannelIDs {
		if moving[ref] {
			moved = append(moved, ref)
		} else {
			kept = append(kept, ref)
		}
	}
	original.ChannelIDs = kept
	original.ChannelCount = len(kept)

	return &domain.Cluster{
		Name:         newName,
		CommonTags:   append([]string(nil), original.CommonTags...),
		Threshold:    original.Threshold,
		ChannelIDs:   moved,
		ChannelCount: len(moved),
		IsActive:     true,
		CreatedBy:    domain.ClusterCreatedByUser,
	}
}

func (s *ClusterStore) mutateMembership(ctx context.Context, id string, mutate func(*domain.Cluster)) (*domain.Cluster, error) {
	cluster, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	mutate(cluster)
	cluster.ChannelCount = len(cluster.ChannelIDs)
	cluster.UpdatedAt = time.Now()

	if err := s.saveCluster(ctx, s.db, cluster); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return cluster, nil
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *ClusterStore) findByIDTx(ctx context.Context, q executor, id string) (*domain.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE id = $1 LIMIT 1`
	cluster, err := scanCluster(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, notFoundCluster(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster: %w", err)
	}
	return cluster, nil
}

func (s *ClusterStore) insertClusterTx(ctx context.Context, q executor, cluster *domain.Cluster) error {
	commonTags, keywordPatterns, channelIDs, err := marshalClusterJSON(cluster)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO clusters (` + clusterColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = q.ExecContext(ctx, query,
		cluster.ID, cluster.Name, cluster.Description, cluster.Color,
		commonTags, keywordPatterns, cluster.Threshold, cluster.AutoAdd,
		channelIDs, cluster.ChannelCount,
		cluster.TotalSubscribers, cluster.AvgSubscribers, cluster.AvgChannelSize,
		cluster.IsActive, cluster.CreatedBy, cluster.CreatedAt, cluster.UpdatedAt, cluster.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %w", err)
	}
	return nil
}

func (s *ClusterStore) saveCluster(ctx context.Context, q executor, cluster *domain.Cluster) error {
	commonTags, keywordPatterns, channelIDs, err := marshalClusterJSON(cluster)
	if err != nil {
		return err
	}

	query := `
		UPDATE clusters SET
			name = $2, description = $3, color = $4,
			common_tags = $5, keyword_patterns = $6,
			threshold = $7, auto_add = $8,
			channel_ids = $9, channel_count = $10,
			total_subscribers = $11, avg_subscribers = $12, avg_channel_size = $13,
			is_active = $14, updated_at = $15, version = $16
		WHERE id = $1
	`
	_, err = q.ExecContext(ctx, query,
		cluster.ID, cluster.Name, cluster.Description, cluster.Color,
		commonTags, keywordPatterns, cluster.Threshold, cluster.AutoAdd,
		channelIDs, cluster.ChannelCount,
		cluster.TotalSubscribers, cluster.AvgSubscribers, cluster.AvgChannelSize,
		cluster.IsActive, cluster.UpdatedAt, cluster.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save cluster: %w", err)
	}
	return nil
}

func (s *ClusterStore) usedColors(ctx context.Context, q executor) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT color FROM clusters`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster colors: %w", err)
	}
	defer rows.Close()

	var colors []string
	for rows.Next() {
		var color string
		if err := rows.Scan(&color); err != nil {
			return nil, err
		}
		colors = append(colors, color)
	}
	return colors, rows.Err()
}

func (s *ClusterStore) queryClusters(ctx context.Context, query string, args ...any) ([]*domain.Cluster, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	clusters := make([]*domain.Cluster, 0)
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}
	return clusters, rows.Err()
}

func (s *ClusterStore) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	keys := []string{"clusters:all", "clusters:active"}
	for _, id := range ids {
		keys = append(keys, "cluster:"+id)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.Warn("Cluster cache invalidation failed", zap.Error(err))
	}
}

func scanCluster(row rowScanner) (*domain.Cluster, error) {
	var (
		cluster         domain.Cluster
		commonTags      []byte
		keywordPatterns []byte
		channelIDs      []byte
	)

	err := row.Scan(
		&cluster.ID, &cluster.Name, &cluster.Description, &cluster.Color,
		&commonTags, &keywordPatterns, &cluster.Threshold, &cluster.AutoAdd,
		&channelIDs, &cluster.ChannelCount,
		&cluster.TotalSubscribers, &cluster.AvgSubscribers, &cluster.AvgChannelSize,
		&cluster.IsActive, &cluster.CreatedBy, &cluster.CreatedAt, &cluster.UpdatedAt, &cluster.Version,
	)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		data []byte
		dest any
	}{
		{commonTags, &cluster.CommonTags},
		{keywordPatterns, &cluster.KeywordPatterns},
		{channelIDs, &cluster.ChannelIDs},
	} {
		if len(field.data) > 0 {
			if err := json.Unmarshal(field.data, field.dest); err != nil {
				return nil, fmt.Errorf("failed to decode cluster field: %w", err)
			}
		}
	}

	return &cluster, nil
}

func marshalClusterJSON(cluster *domain.Cluster) (commonTags, keywordPatterns, channelIDs []byte, err error) {
	commonTags, err = json.Marshal(orEmpty(cluster.CommonTags))
	if err == nil {
		keywordPatterns, err = json.Marshal(orEmpty(cluster.KeywordPatterns))
	}
	if err == nil {
		channelIDs, err = json.Marshal(orEmpty(cluster.ChannelIDs))
	}
	if err != nil {
		err = fmt.Errorf("failed to marshal cluster fields: %w", err)
	}
	return
}
