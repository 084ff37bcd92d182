package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/pkg/errors"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS channels (
	platform           TEXT NOT NULL,
	channel_id         TEXT NOT NULL,
	name               TEXT NOT NULL DEFAULT '',
	url                TEXT NOT NULL DEFAULT '',
	subscribers        BIGINT NOT NULL DEFAULT 0,
	video_count        BIGINT NOT NULL DEFAULT 0,
	description        TEXT NOT NULL DEFAULT '',
	thumbnail_url      TEXT NOT NULL DEFAULT '',
	custom_url         TEXT NOT NULL DEFAULT '',
	content_type       TEXT NOT NULL DEFAULT 'unknown',
	keywords           JSONB NOT NULL DEFAULT '[]',
	ai_tags            JSONB NOT NULL DEFAULT '[]',
	deep_insight_tags  JSONB NOT NULL DEFAULT '[]',
	all_tags           JSONB NOT NULL DEFAULT '[]',
	cluster_ids        JSONB NOT NULL DEFAULT '[]',
	suggested_clusters JSONB NOT NULL DEFAULT '[]',
	analysis           JSONB,
	collected_at       TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	version            INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (platform, channel_id)
);

CREATE INDEX IF NOT EXISTS idx_channels_collected_at ON channels (collected_at DESC);
CREATE INDEX IF NOT EXISTS idx_channels_all_tags ON channels USING GIN (all_tags);

CREATE TABLE IF NOT EXISTS clusters (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	color             TEXT NOT NULL DEFAULT '#007bff',
	common_tags       JSONB NOT NULL DEFAULT '[]',
	keyword_patterns  JSONB NOT NULL DEFAULT '[]',
	threshold         DOUBLE PRECISION NOT NULL DEFAULT 0.6,
	auto_add          BOOLEAN NOT NULL DEFAULT FALSE,
	channel_ids       JSONB NOT NULL DEFAULT '[]',
	channel_count     INTEGER NOT NULL DEFAULT 0,
	total_subscribers BIGINT NOT NULL DEFAULT 0,
	avg_subscribers   BIGINT NOT NULL DEFAULT 0,
	avg_channel_size  BIGINT NOT NULL DEFAULT 0,
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	created_by        TEXT NOT NULL DEFAULT 'user',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	version           INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_clusters_common_tags ON clusters USING GIN (common_tags);
`

// EnsureSchema creates the channel and cluster tables when they do not
// exist yet. Safe to call on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure database schema: %w", err)
	}
	return nil
}

func notFoundChannel(key domain.ChannelKey) error {
	return errors.NewNotFoundError("channel", key.String())
}

func notFoundCluster(id string) error {
	return errors.NewNotFoundError("cluster", id)
}
