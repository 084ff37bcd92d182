package domain

import "time"

// ChannelAnalysis holds the optional deep-analysis snapshot for a channel.
// Present only when an analysis pass ran; absence is not an error.
type ChannelAnalysis struct {
	UploadsPerWeek     float64          `json:"uploadsPerWeek"`
	RecentViews        int64            `json:"recentViews"` // 최근 기간 조회수 합계
	AvgDurationSeconds float64          `json:"avgDurationSeconds"`
	ShortformRatio     float64          `json:"shortformRatio"`
	ViewsByPeriod      map[string]int64 `json:"viewsByPeriod"`
	TotalViews         int64            `json:"totalViews"`
	TotalVideos        int64            `json:"totalVideos"`
	MostViewedVideoID  string           `json:"mostViewedVideoId"`
	AnalyzedAt         time.Time        `json:"analyzedAt"`
	AnalysisVersion    int              `json:"analysisVersion"`
}

// ChannelMetadata is what the external metadata provider returns for a
// channel reference before the engine normalizes it into a Channel.
type ChannelMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Platform     string    `json:"platform"`
	Subscribers  int64     `json:"subscribers"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	CustomURL    string    `json:"customUrl"`
	VideoCount   int64     `json:"videoCount"`
	PublishedAt  time.Time `json:"publishedAt"`
}
