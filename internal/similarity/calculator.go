// Package similarity implements the pure scoring functions behind channel
// tagging and clustering: Jaccard tag similarity, subscriber-scale
// similarity, weighted channel-to-channel similarity, cluster fit scoring
// and greedy group discovery. Nothing here touches a store or the network.
package similarity

import (
	"regexp"
	"sort"

	"github.com/kapu/channel-insight-go/internal/constants"
	"github.com/kapu/channel-insight-go/internal/domain"
	"github.com/kapu/channel-insight-go/internal/util"
)

var wordPattern = regexp.MustCompile(`[\w가-힣]+`)

// Weights control the terms of WeightedSimilarity.
type Weights struct {
	Tags        float64
	Subscribers float64
	Platform    float64
	Description float64
}

// DefaultWeights returns the production weighting: tags dominate.
func DefaultWeights() Weights {
	return Weights{
		Tags:        constants.Similarity.TagWeight,
		Subscribers: constants.Similarity.SubscriberWeight,
		Platform:    constants.Similarity.PlatformWeight,
		Description: constants.Similarity.DescriptionWeight,
	}
}

// TagSimilarity computes the Jaccard index of two tag lists after
// normalization. Two empty lists are fully similar; one empty list is not
// similar at all.
func TagSimilarity(tags1, tags2 []string) float64 {
	if len(tags1) == 0 && len(tags2) == 0 {
		return 1
	}
	if len(tags1) == 0 || len(tags2) == 0 {
		return 0
	}

	set1 := toSet(util.NormalizeAll(tags1))
	set2 := toSet(util.NormalizeAll(tags2))

	intersection := 0
	for tag := range set1 {
		if _, ok := set2[tag]; ok {
			intersection++
		}
	}

	union := len(set1)
	for tag := range set2 {
		if _, ok := set1[tag]; !ok {
			union++
		}
	}

	return util.Round2(float64(intersection) / float64(union))
}

var bucketOrder = []string{"micro", "small", "medium", "large", "mega"}

func subscriberBucket(subs int64) string {
	switch {
	case subs >= constants.SubscriberBuckets.Mega:
		return "mega"
	case subs >= constants.SubscriberBuckets.Large:
		return "large"
	case subs >= constants.SubscriberBuckets.Medium:
		return "medium"
	case subs >= constants.SubscriberBuckets.Small:
		return "small"
	default:
		return "micro"
	}
}

func bucketIndex(bucket string) int {
	for i, b := range bucketOrder {
		if b == bucket {
			return i
		}
	}
	return 0
}

// SubscriberSimilarity scores how comparable two subscriber counts are.
// Channels in the same size bucket score 0.8-1.0, adjacent buckets 0.4-0.6,
// anything further at most 0.3.
func SubscriberSimilarity(subs1, subs2 int64) float64 {
	if subs1 == 0 && subs2 == 0 {
		return 1
	}
	if subs1 == 0 || subs2 == 0 {
		return 0
	}

	ratio := float64(min64(subs1, subs2)) / float64(max64(subs1, subs2))

	bucket1 := subscriberBucket(subs1)
	bucket2 := subscriberBucket(subs2)

	if bucket1 == bucket2 {
		return util.Round2(0.8 + ratio*0.2)
	}

	distance := bucketIndex(bucket1) - bucketIndex(bucket2)
	if distance < 0 {
		distance = -distance
	}
	if distance == 1 {
		return util.Round2(0.4 + ratio*0.2)
	}

	return util.Round2(ratio * 0.3)
}

// TextSimilarity tokenizes both texts on word boundaries (Hangul included),
// keeps tokens of at least two runes and compares the token sets.
func TextSimilarity(text1, text2 string) float64 {
	if text1 == "" && text2 == "" {
		return 1
	}
	if text1 == "" || text2 == "" {
		return 0
	}

	return TagSimilarity(meaningfulWords(text1), meaningfulWords(text2))
}

func meaningfulWords(text string) []string {
	words := wordPattern.FindAllString(util.Normalize(text), -1)
	result := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) >= 2 {
			result = append(result, w)
		}
	}
	return result
}

// WeightedSimilarity combines tag, subscriber, platform and description
// similarity into one channel-to-channel score.
func WeightedSimilarity(a, b *domain.Channel, weights *Weights) float64 {
	w := DefaultWeights()
	if weights != nil {
		w = *weights
	}

	total := TagSimilarity(a.AllTags, b.AllTags) * w.Tags
	total += SubscriberSimilarity(a.Subscribers, b.Subscribers) * w.Subscribers

	if a.Platform == b.Platform {
		total += w.Platform
	}

	total += TextSimilarity(a.Description, b.Description) * w.Description

	return util.Round2(total)
}

// ClusterFitScore scores how well a channel fits a cluster: tag overlap with
// the cluster's common tags (weight 0.7) plus, when the cluster already has
// members, the mean weighted similarity to them (weight 0.3). The result is
// normalized by the weights actually present, so against an empty cluster the
// score is the raw tag similarity.
func ClusterFitScore(channel *domain.Channel, cluster *domain.Cluster, members []*domain.Channel) *domain.FitScore {
	scores := []domain.ScoreComponent{
		{
			Type:   "tags",
			Score:  TagSimilarity(channel.AllTags, cluster.CommonTags),
			Weight: constants.Similarity.FitTagWeight,
		},
	}

	if len(members) > 0 {
		similarities := make([]float64, len(members))
		for i, member := range members {
			similarities[i] = WeightedSimilarity(channel, member, nil)
		}
		scores = append(scores, domain.ScoreComponent{
			Type:   "channels",
			Score:  util.Mean(similarities),
			Weight: constants.Similarity.FitMemberWeight,
		})
	}

	weighted := 0.0
	totalWeight := 0.0
	for _, s := range scores {
		weighted += s.Score * s.Weight
		totalWeight += s.Weight
	}

	return &domain.FitScore{
		FinalScore: util.Round2(weighted / totalWeight),
		Breakdown:  scores,
		Confidence: Confidence(scores),
	}
}

// Confidence blends the mean component score with their consistency: a high
// average with low spread is trustworthy.
func Confidence(scores []domain.ScoreComponent) float64 {
	values := make([]float64, len(scores))
	for i, s := range scores {
		values[i] = s.Score
	}

	avg := util.Mean(values)
	stdDev := util.StdDev(values)

	consistency := 1 - stdDev
	if stdDev > 1 {
		consistency = 0
	}

	return util.Round2((avg + consistency) / 2)
}

// Group is a proposed set of similar channels.
type Group struct {
	Channels      []*domain.Channel
	Size          int
	CommonTags    []domain.TagFrequency
	AvgSimilarity float64
}

// GroupOptions configure FindSimilarGroups. Zero values fall back to the
// production defaults.
type GroupOptions struct {
	Threshold    float64
	MinGroupSize int
	// CompareToGroup switches the candidate comparison from the seed channel
	// to the mean similarity against the evolving group (average-link).
	CompareToGroup bool
	Weights        *Weights
}

func (o GroupOptions) withDefaults() GroupOptions {
	if o.Threshold == 0 {
		o.Threshold = constants.Similarity.GroupThreshold
	}
	if o.MinGroupSize == 0 {
		o.MinGroupSize = constants.Similarity.MinGroupSize
	}
	return o
}

// FindSimilarGroups greedily partitions channels into groups of similar
// ones. Channels are visited in input order; each unassigned channel seeds a
// group and later unassigned channels join when their similarity clears the
// threshold. Groups below the minimum size are discarded. Results are sorted
// by cohesion, best first.
func FindSimilarGroups(channels []*domain.Channel, opts GroupOptions) []Group {
	opts = opts.withDefaults()

	groups := make([]Group, 0)
	used := make([]bool, len(channels))

	for i := range channels {
		if used[i] {
			continue
		}

		group := []*domain.Channel{channels[i]}
		used[i] = true

		for j := i + 1; j < len(channels); j++ {
			if used[j] {
				continue
			}

			var score float64
			if opts.CompareToGroup {
				score = meanSimilarityTo(channels[j], group, opts.Weights)
			} else {
				score = WeightedSimilarity(channels[i], channels[j], opts.Weights)
			}

			if score >= opts.Threshold {
				group = append(group, channels[j])
				used[j] = true
			}
		}

		if len(group) >= opts.MinGroupSize {
			groups = append(groups, Group{
				Channels:      group,
				Size:          len(group),
				CommonTags:    ExtractCommonTags(group, constants.Similarity.CommonTagFrequency),
				AvgSimilarity: GroupCohesion(group),
			})
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].AvgSimilarity > groups[b].AvgSimilarity
	})

	return groups
}

func meanSimilarityTo(candidate *domain.Channel, group []*domain.Channel, weights *Weights) float64 {
	similarities := make([]float64, len(group))
	for i, member := range group {
		similarities[i] = WeightedSimilarity(candidate, member, weights)
	}
	return util.Mean(similarities)
}

// ExtractCommonTags returns the tags whose occurrence fraction across the
// group's channels reaches minFrequency, most frequent first.
func ExtractCommonTags(channels []*domain.Channel, minFrequency float64) []domain.TagFrequency {
	if len(channels) == 0 {
		return []domain.TagFrequency{}
	}

	counts := make(map[string]int)
	order := make([]string, 0)

	for _, channel := range channels {
		for _, tag := range channel.AllTags {
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	total := float64(len(channels))
	common := make([]domain.TagFrequency, 0)
	for _, tag := range order {
		frequency := float64(counts[tag]) / total
		if frequency >= minFrequency {
			common = append(common, domain.TagFrequency{Tag: tag, Frequency: frequency})
		}
	}

	sort.SliceStable(common, func(a, b int) bool {
		return common[a].Frequency > common[b].Frequency
	})

	return common
}

// GroupCohesion is the mean pairwise weighted similarity across all member
// pairs. Single-member groups are trivially cohesive.
func GroupCohesion(channels []*domain.Channel) float64 {
	if len(channels) < 2 {
		return 1
	}

	total := 0.0
	pairs := 0
	for i := 0; i < len(channels); i++ {
		for j := i + 1; j < len(channels); j++ {
			total += WeightedSimilarity(channels[i], channels[j], nil)
			pairs++
		}
	}

	return total / float64(pairs)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
