package domain

import (
	"fmt"
	"time"
)

const (
	ClusterCreatedByUser = "user"
	ClusterCreatedByAI   = "ai"
)

// Cluster is a named group of channels sharing common tags. ChannelIDs is
// the source of truth for membership; ChannelCount must equal its length
// after every mutator returns.
type Cluster struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`

	CommonTags      []string `json:"commonTags"`
	KeywordPatterns []string `json:"keywordPatterns"` // 규칙 기반 매칭 예약
	Threshold       float64  `json:"threshold"`
	AutoAdd         bool     `json:"autoAdd"`

	ChannelIDs   []string `json:"channelIds"`
	ChannelCount int      `json:"channelCount"`

	TotalSubscribers int64 `json:"totalSubscribers"`
	AvgSubscribers   int64 `json:"avgSubscribers"`
	AvgChannelSize   int64 `json:"avgChannelSize"`

	IsActive  bool      `json:"isActive"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

// HasChannel reports membership of a channel id.
func (c *Cluster) HasChannel(channelID string) bool {
	for _, id := range c.ChannelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}

// GenerateClusterID mints a time-sortable cluster id.
func GenerateClusterID() string {
	return fmt.Sprintf("cluster_%d_%s", time.Now().UnixMilli(), randomToken(9))
}
