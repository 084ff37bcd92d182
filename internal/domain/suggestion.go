package domain

// ClusterSuggestion recommends an existing cluster for a freshly collected
// channel, with the tag overlap that justified it.
type ClusterSuggestion struct {
	Cluster    *Cluster `json:"cluster"`
	Similarity float64  `json:"similarity"`
	Reason     string   `json:"reason"`
}

// ClusterProposal is a brand-new cluster proposed from unclustered channels.
// It is not persisted until a user accepts it.
type ClusterProposal struct {
	SuggestedName string         `json:"suggestedName"`
	Channels      []*Channel     `json:"channels"`
	CommonTags    []TagFrequency `json:"commonTags"`
	Confidence    float64        `json:"confidence"`
}

// TagFrequency pairs a tag with its occurrence fraction inside a group.
type TagFrequency struct {
	Tag       string  `json:"tag"`
	Frequency float64 `json:"frequency"`
}

// ScoreComponent is one weighted term of a cluster fit score.
type ScoreComponent struct {
	Type   string  `json:"type"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// FitScore is a channel's suitability for a specific cluster.
type FitScore struct {
	FinalScore float64          `json:"finalScore"`
	Breakdown  []ScoreComponent `json:"breakdown"`
	Confidence float64          `json:"confidence"`
}

// KeywordCount ranks a user keyword by how often it was used recently.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// EngineStatistics summarizes the collected corpus.
type EngineStatistics struct {
	TotalChannels       int     `json:"totalChannels"`
	TotalClusters       int     `json:"totalClusters"`
	UnclusteredCount    int     `json:"unclusteredCount"`
	ClusteredPercentage float64 `json:"clusteredPercentage"`
}
