package store

import (
	"database/sql"
	"testing"

	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/domain"
)

// Helpers that take an executor must accept both the pool and an open
// transaction, so tx-scoped reads like the split color query stay inside
// the transaction.
var (
	_ executor = (*sql.DB)(nil)
	_ executor = (*sql.Tx)(nil)
)

func strPtr(s string) *string     { return &s }
func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestApplyClusterPatch(t *testing.T) {
	cluster := &domain.Cluster{
		Name:        "게임 채널들",
		Description: "원래 설명",
		Threshold:   0.6,
		CommonTags:  []string{"게임"},
		ChannelIDs:  []string{"youtube:UC1"},
		Version:     3,
	}

	ApplyClusterPatch(cluster, ClusterPatch{
		Name:       strPtr("새 이름"),
		Threshold:  floatPtr(0.8),
		AutoAdd:    boolPtr(true),
		CommonTags: []string{"게임", "공략"},
	})

	if cluster.Name != "새 이름" {
		t.Errorf("Name = %q", cluster.Name)
	}
	if cluster.Threshold != 0.8 {
		t.Errorf("Threshold = %v", cluster.Threshold)
	}
	if !cluster.AutoAdd {
		t.Error("AutoAdd not applied")
	}
	if len(cluster.CommonTags) != 2 {
		t.Errorf("CommonTags = %v", cluster.CommonTags)
	}
	// Untouched fields survive.
	if cluster.Description != "원래 설명" {
		t.Errorf("Description changed to %q", cluster.Description)
	}
	if len(cluster.ChannelIDs) != 1 {
		t.Error("membership must never change through a patch")
	}
}

func TestApplyClusterPatchEmptyPatch(t *testing.T) {
	cluster := &domain.Cluster{Name: "그대로", Threshold: 0.6, AutoAdd: true}
	ApplyClusterPatch(cluster, ClusterPatch{})
	if cluster.Name != "그대로" || cluster.Threshold != 0.6 || !cluster.AutoAdd {
		t.Errorf("empty patch mutated the cluster: %+v", cluster)
	}
}

func TestNextColor(t *testing.T) {
	palette := constants.Cluster.Colors

	if got := NextColor(nil); got != palette[0] {
		t.Errorf("first color = %q, want %q", got, palette[0])
	}
	if got := NextColor(palette[:3]); got != palette[3] {
		t.Errorf("next color = %q, want %q", got, palette[3])
	}
	if got := NextColor(palette); got != constants.Cluster.DefaultColor {
		t.Errorf("exhausted palette = %q, want default", got)
	}
}

func TestRecomputeStatistics(t *testing.T) {
	cluster := &domain.Cluster{
		ChannelIDs: []string{"youtube:a", "youtube:b"},
	}
	members := []*domain.Channel{
		{ChannelID: "a", Platform: "youtube", Subscribers: 10000, VideoCount: 100},
		{ChannelID: "b", Platform: "youtube", Subscribers: 30000, VideoCount: 300},
	}

	RecomputeStatistics(cluster, members)

	if cluster.ChannelCount != 2 {
		t.Errorf("ChannelCount = %d", cluster.ChannelCount)
	}
	if cluster.TotalSubscribers != 40000 {
		t.Errorf("TotalSubscribers = %d", cluster.TotalSubscribers)
	}
	if cluster.AvgSubscribers != 20000 {
		t.Errorf("AvgSubscribers = %d", cluster.AvgSubscribers)
	}
	if cluster.AvgChannelSize != 200 {
		t.Errorf("AvgChannelSize = %d", cluster.AvgChannelSize)
	}
}

func TestRecomputeStatisticsEmpty(t *testing.T) {
	cluster := &domain.Cluster{
		TotalSubscribers: 99,
		AvgSubscribers:   99,
		AvgChannelSize:   99,
	}
	RecomputeStatistics(cluster, nil)
	if cluster.TotalSubscribers != 0 || cluster.AvgSubscribers != 0 || cluster.AvgChannelSize != 0 {
		t.Errorf("empty membership should zero the aggregates: %+v", cluster)
	}
}

func TestMergeInto(t *testing.T) {
	target := &domain.Cluster{
		ID:         "cluster_a",
		Name:       "게임 채널들",
		ChannelIDs: []string{"youtube:a", "youtube:b"},
		CommonTags: []string{"게임"},
	}
	source := &domain.Cluster{
		ID:         "cluster_b",
		Name:       "공략 채널들",
		ChannelIDs: []string{"youtube:b", "youtube:c"},
		CommonTags: []string{"게임", "공략"},
	}

	MergeInto(target, source, "")

	if len(target.ChannelIDs) != 3 {
		t.Errorf("ChannelIDs = %v, want union of 3", target.ChannelIDs)
	}
	if target.ChannelCount != 3 {
		t.Errorf("ChannelCount = %d", target.ChannelCount)
	}
	if len(target.CommonTags) != 2 {
		t.Errorf("CommonTags = %v, want union of 2", target.CommonTags)
	}
	if target.Name != "게임 채널들" {
		t.Errorf("name changed without a rename: %q", target.Name)
	}

	MergeInto(target, &domain.Cluster{}, "합친 그룹")
	if target.Name != "합친 그룹" {
		t.Errorf("rename ignored: %q", target.Name)
	}
}

func TestSplitFrom(t *testing.T) {
	original := &domain.Cluster{
		ID:         "cluster_a",
		Name:       "게임 채널들",
		ChannelIDs: []string{"youtube:a", "youtube:b", "youtube:c"},
		CommonTags: []string{"게임", "공략"},
		Threshold:  0.7,
	}

	spun := SplitFrom(original, "실황 채널들", []domain.ChannelKey{
		{Platform: "youtube", ID: "b"},
		{Platform: "youtube", ID: "c"},
	})

	if len(original.ChannelIDs) != 1 || original.ChannelIDs[0] != "youtube:a" {
		t.Errorf("original membership = %v", original.ChannelIDs)
	}
	if original.ChannelCount != 1 {
		t.Errorf("original count = %d", original.ChannelCount)
	}

	if spun.Name != "실황 채널들" {
		t.Errorf("new name = %q", spun.Name)
	}
	if len(spun.ChannelIDs) != 2 {
		t.Errorf("new membership = %v", spun.ChannelIDs)
	}
	if spun.Threshold != 0.7 {
		t.Errorf("threshold not inherited: %v", spun.Threshold)
	}
	if len(spun.CommonTags) != 2 {
		t.Errorf("common tags not copied: %v", spun.CommonTags)
	}
	if !spun.IsActive {
		t.Error("new cluster should start active")
	}

	// The copied tags are independent of the original's slice.
	spun.CommonTags[0] = "변경"
	if original.CommonTags[0] == "변경" {
		t.Error("common tags should be a copy, not an alias")
	}
}

func TestSplitFromUnknownKeys(t *testing.T) {
	original := &domain.Cluster{
		ChannelIDs: []string{"youtube:a"},
	}
	spun := SplitFrom(original, "새 그룹", []domain.ChannelKey{{Platform: "youtube", ID: "nope"}})
	if len(spun.ChannelIDs) != 0 {
		t.Errorf("unknown keys should move nothing, got %v", spun.ChannelIDs)
	}
	if len(original.ChannelIDs) != 1 {
		t.Errorf("original membership should be intact, got %v", original.ChannelIDs)
	}
}
