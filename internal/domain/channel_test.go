package domain

import (
	"strings"
	"testing"
)

func TestClassifyContentType(t *testing.T) {
	tests := []struct {
		name    string
		ratio   float64
		hasData bool
		want    ContentType
	}{
		{"mostly shorts", 0.9, true, ContentTypeShortform},
		{"exactly at shorts boundary", 0.8, true, ContentTypeShortform},
		{"mostly longform", 0.1, true, ContentTypeLongform},
		{"exactly at longform boundary", 0.2, true, ContentTypeLongform},
		{"in between", 0.5, true, ContentTypeMixed},
		{"no sample", 0.9, false, ContentTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyContentType(tt.ratio, tt.hasData); got != tt.want {
				t.Errorf("ClassifyContentType(%v, %v) = %v, want %v", tt.ratio, tt.hasData, got, tt.want)
			}
		})
	}
}

func TestParseContentType(t *testing.T) {
	if got := ParseContentType(" Shortform "); got != ContentTypeShortform {
		t.Errorf("got %v", got)
	}
	if got := ParseContentType("whatever"); got != ContentTypeUnknown {
		t.Errorf("got %v", got)
	}
}

func TestChannelKeyString(t *testing.T) {
	key := ChannelKey{Platform: "youtube", ID: "UC123"}
	if key.String() != "youtube:UC123" {
		t.Errorf("key = %q, want youtube:UC123", key.String())
	}
}

func TestDeriveChannelID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/channel/UCabc123", "UCabc123"},
		{"https://www.youtube.com/channel/UCabc123/videos", "UCabc123"},
		{"https://www.youtube.com/c/CustomName", "CustomName"},
		{"https://www.youtube.com/@handle", "handle"},
	}
	for _, tt := range tests {
		if got := DeriveChannelID(tt.url); got != tt.want {
			t.Errorf("DeriveChannelID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDeriveChannelIDGeneratesWhenUnparseable(t *testing.T) {
	got := DeriveChannelID("https://example.com/watch?v=xyz")
	if !strings.HasPrefix(got, "ch_") {
		t.Errorf("unparseable URL should get a generated id, got %q", got)
	}
}

func TestGenerateChannelID(t *testing.T) {
	id := GenerateChannelID()
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != "ch" {
		t.Fatalf("id = %q, want ch_<ms>_<token>", id)
	}
	if len(parts[2]) != 9 {
		t.Errorf("token length = %d, want 9", len(parts[2]))
	}
	if id == GenerateChannelID() && id == GenerateChannelID() {
		t.Error("consecutive ids should differ")
	}
}

func TestGenerateClusterID(t *testing.T) {
	id := GenerateClusterID()
	if !strings.HasPrefix(id, "cluster_") {
		t.Errorf("id = %q, want cluster_ prefix", id)
	}
}

func TestMergeAllTags(t *testing.T) {
	channel := &Channel{
		Keywords: []string{"한국게임", "게임"},
		AITags:   []string{"게임", "공략", "실황", "전략", "리뷰", "여섯번째", "일곱번째"},
	}
	channel.MergeAllTags()

	// User keywords first, then at most five AI tags, duplicates dropped.
	want := []string{"한국게임", "게임", "공략", "실황", "전략", "리뷰"}
	if len(channel.AllTags) != len(want) {
		t.Fatalf("AllTags = %v, want %v", channel.AllTags, want)
	}
	for i := range want {
		if channel.AllTags[i] != want[i] {
			t.Errorf("AllTags[%d] = %q, want %q", i, channel.AllTags[i], want[i])
		}
	}
}

func TestIsClustered(t *testing.T) {
	channel := &Channel{}
	if channel.IsClustered() {
		t.Error("fresh channel should not be clustered")
	}
	channel.ClusterIDs = []string{"cluster_1"}
	if !channel.IsClustered() {
		t.Error("channel with membership should be clustered")
	}
}
