package similarity

import (
	"math"
	"testing"

	"github.com/kapu/channel-insight-go/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTagSimilarity(t *testing.T) {
	tests := []struct {
		name  string
		tags1 []string
		tags2 []string
		want  float64
	}{
		{
			name:  "partial korean overlap",
			tags1: []string{"여행", "브이로그", "카메라"},
			tags2: []string{"여행", "음식", "브이로그"},
			want:  0.5,
		},
		{
			name:  "identical",
			tags1: []string{"게임", "공략"},
			tags2: []string{"게임", "공략"},
			want:  1,
		},
		{
			name:  "both empty",
			tags1: nil,
			tags2: nil,
			want:  1,
		},
		{
			name:  "one empty",
			tags1: []string{"게임"},
			tags2: nil,
			want:  0,
		},
		{
			name:  "case insensitive",
			tags1: []string{"Gaming"},
			tags2: []string{"gaming"},
			want:  1,
		},
		{
			name:  "duplicates do not inflate the score",
			tags1: []string{"게임", "게임", "쿠킹"},
			tags2: []string{"게임"},
			want:  0.5,
		},
		{
			name:  "no overlap",
			tags1: []string{"게임"},
			tags2: []string{"요리"},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TagSimilarity(tt.tags1, tt.tags2)
			if !almostEqual(got, tt.want) {
				t.Errorf("TagSimilarity(%v, %v) = %v, want %v", tt.tags1, tt.tags2, got, tt.want)
			}
		})
	}
}

func TestSubscriberSimilarity(t *testing.T) {
	tests := []struct {
		name  string
		subs1 int64
		subs2 int64
		want  float64
	}{
		{"same bucket", 500000, 600000, 0.97},
		{"equal counts", 5000, 5000, 1},
		{"both zero", 0, 0, 1},
		{"one zero", 0, 5000, 0},
		{"adjacent buckets", 50000, 150000, 0.47},
		{"distant buckets", 500, 2000000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubscriberSimilarity(tt.subs1, tt.subs2)
			if !almostEqual(got, tt.want) {
				t.Errorf("SubscriberSimilarity(%d, %d) = %v, want %v", tt.subs1, tt.subs2, got, tt.want)
			}
		})
	}

	t.Run("symmetric", func(t *testing.T) {
		if SubscriberSimilarity(50000, 150000) != SubscriberSimilarity(150000, 50000) {
			t.Error("similarity should not depend on argument order")
		}
	})
}

func TestTextSimilarity(t *testing.T) {
	if got := TextSimilarity("", ""); !almostEqual(got, 1) {
		t.Errorf("empty texts = %v, want 1", got)
	}
	if got := TextSimilarity("여행 전문 채널", ""); !almostEqual(got, 0) {
		t.Errorf("one empty text = %v, want 0", got)
	}
	if got := TextSimilarity("여행 전문 채널", "여행 채널"); !almostEqual(got, 0.67) {
		t.Errorf("korean word overlap = %v, want 0.67", got)
	}
	// Single-rune tokens carry no meaning and are dropped.
	if got := TextSimilarity("아 여행 채널", "여행 채널"); !almostEqual(got, 1) {
		t.Errorf("short tokens should be ignored, got %v", got)
	}
}

func testChannel(name string, tags []string, subs int64) *domain.Channel {
	return &domain.Channel{
		ChannelID:   name,
		Name:        name,
		Platform:    "youtube",
		Subscribers: subs,
		AllTags:     tags,
	}
}

func TestWeightedSimilarity(t *testing.T) {
	a := testChannel("a", []string{"게임", "공략", "실황"}, 50000)
	b := testChannel("b", []string{"게임", "공략", "실황"}, 50000)

	if got := WeightedSimilarity(a, b, nil); !almostEqual(got, 1) {
		t.Errorf("identical channels = %v, want 1", got)
	}

	c := testChannel("c", []string{"요리"}, 100)
	got := WeightedSimilarity(a, c, nil)
	if got < 0 || got > 1 {
		t.Errorf("score %v out of range", got)
	}
	if got >= WeightedSimilarity(a, b, nil) {
		t.Error("dissimilar pair should score below identical pair")
	}
}

func TestWeightedSimilarityBounds(t *testing.T) {
	channels := []*domain.Channel{
		testChannel("a", []string{"게임"}, 0),
		testChannel("b", nil, 1500000),
		testChannel("c", []string{"요리", "먹방"}, 999),
		testChannel("d", []string{"게임", "요리"}, 50000),
	}
	for _, a := range channels {
		for _, b := range channels {
			got := WeightedSimilarity(a, b, nil)
			if got < 0 || got > 1 {
				t.Errorf("WeightedSimilarity(%s, %s) = %v out of [0,1]", a.Name, b.Name, got)
			}
		}
	}
}

func TestClusterFitScore(t *testing.T) {
	channel := testChannel("a", []string{"게임", "공략"}, 50000)
	cluster := &domain.Cluster{
		ID:         "cluster_1",
		Name:       "게임 채널들",
		CommonTags: []string{"게임", "공략"},
	}

	t.Run("empty cluster normalizes to the raw tag score", func(t *testing.T) {
		fit := ClusterFitScore(channel, cluster, nil)
		if !almostEqual(fit.FinalScore, 1) {
			t.Errorf("FinalScore = %v, want 1 (tag term divided by its own weight)", fit.FinalScore)
		}
		if len(fit.Breakdown) != 1 {
			t.Fatalf("Breakdown has %d components, want 1", len(fit.Breakdown))
		}
		if fit.Breakdown[0].Type != "tags" {
			t.Errorf("component type = %q, want tags", fit.Breakdown[0].Type)
		}
	})

	t.Run("empty cluster partial overlap", func(t *testing.T) {
		partial := testChannel("c", []string{"게임", "먹방", "여행"}, 50000)
		fit := ClusterFitScore(partial, cluster, nil)
		// Jaccard {게임} / {게임, 공략, 먹방, 여행} = 0.25
		if !almostEqual(fit.FinalScore, 0.25) {
			t.Errorf("FinalScore = %v, want 0.25", fit.FinalScore)
		}
	})

	t.Run("members add the similarity term", func(t *testing.T) {
		member := testChannel("b", []string{"게임", "공략"}, 50000)
		fit := ClusterFitScore(channel, cluster, []*domain.Channel{member})
		if !almostEqual(fit.FinalScore, 1) {
			t.Errorf("FinalScore = %v, want 1", fit.FinalScore)
		}
		if len(fit.Breakdown) != 2 {
			t.Fatalf("Breakdown has %d components, want 2", len(fit.Breakdown))
		}
	})
}

func TestConfidence(t *testing.T) {
	scores := []domain.ScoreComponent{
		{Type: "tags", Score: 0.8, Weight: 0.7},
		{Type: "channels", Score: 0.6, Weight: 0.3},
	}
	// avg 0.7, stddev 0.1, consistency 0.9
	if got := Confidence(scores); !almostEqual(got, 0.8) {
		t.Errorf("Confidence = %v, want 0.8", got)
	}

	uniform := []domain.ScoreComponent{
		{Type: "tags", Score: 1},
		{Type: "channels", Score: 1},
	}
	if got := Confidence(uniform); !almostEqual(got, 1) {
		t.Errorf("uniform confidence = %v, want 1", got)
	}
}

func TestFindSimilarGroups(t *testing.T) {
	gamers := []*domain.Channel{
		testChannel("g1", []string{"게임", "공략", "실황"}, 50000),
		testChannel("g2", []string{"게임", "공략", "실황"}, 52000),
		testChannel("g3", []string{"게임", "공략", "실황"}, 48000),
	}
	outlier := testChannel("cook", []string{"요리"}, 100)

	groups := FindSimilarGroups(append(gamers, outlier), GroupOptions{})
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].Size != 3 {
		t.Errorf("group size = %d, want 3", groups[0].Size)
	}
	for _, member := range groups[0].Channels {
		if member.Name == "cook" {
			t.Error("outlier should not join the group")
		}
	}

	found := false
	for _, tag := range groups[0].CommonTags {
		if tag.Tag == "게임" && almostEqual(tag.Frequency, 1) {
			found = true
		}
	}
	if !found {
		t.Errorf("common tags %v should include 게임 at frequency 1", groups[0].CommonTags)
	}
}

func TestFindSimilarGroupsBelowMinSize(t *testing.T) {
	pair := []*domain.Channel{
		testChannel("g1", []string{"게임", "공략"}, 50000),
		testChannel("g2", []string{"게임", "공략"}, 51000),
	}
	groups := FindSimilarGroups(pair, GroupOptions{})
	if len(groups) != 0 {
		t.Errorf("got %d groups, want 0 for pairs below the minimum size", len(groups))
	}
}

func TestFindSimilarGroupsCompareToGroup(t *testing.T) {
	channels := []*domain.Channel{
		testChannel("g1", []string{"게임", "공략", "실황"}, 50000),
		testChannel("g2", []string{"게임", "공략", "실황"}, 52000),
		testChannel("g3", []string{"게임", "공략", "실황"}, 48000),
	}
	groups := FindSimilarGroups(channels, GroupOptions{CompareToGroup: true})
	if len(groups) != 1 || groups[0].Size != 3 {
		t.Fatalf("average-link mode should still group identical channels, got %v", groups)
	}
}

func TestExtractCommonTags(t *testing.T) {
	channels := []*domain.Channel{
		testChannel("a", []string{"게임", "공략"}, 0),
		testChannel("b", []string{"게임"}, 0),
		testChannel("c", []string{"게임", "요리"}, 0),
	}

	common := ExtractCommonTags(channels, 0.5)
	if len(common) != 1 {
		t.Fatalf("got %d common tags, want 1: %v", len(common), common)
	}
	if common[0].Tag != "게임" || !almostEqual(common[0].Frequency, 1) {
		t.Errorf("common tag = %+v, want 게임 at 1", common[0])
	}

	if got := ExtractCommonTags(nil, 0.5); len(got) != 0 {
		t.Errorf("no channels should yield no tags, got %v", got)
	}
}

func TestGroupCohesion(t *testing.T) {
	single := []*domain.Channel{testChannel("a", []string{"게임"}, 1000)}
	if got := GroupCohesion(single); !almostEqual(got, 1) {
		t.Errorf("single-member cohesion = %v, want 1", got)
	}

	tight := []*domain.Channel{
		testChannel("a", []string{"게임", "공략"}, 50000),
		testChannel("b", []string{"게임", "공략"}, 50000),
	}
	loose := []*domain.Channel{
		testChannel("a", []string{"게임"}, 100),
		testChannel("b", []string{"요리"}, 2000000),
	}
	if GroupCohesion(tight) <= GroupCohesion(loose) {
		t.Error("tight group should be more cohesive than loose group")
	}
}
