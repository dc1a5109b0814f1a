package guard

import (
	"encoding/json"
	"math"

	"auralytics/internal/model"
)

// fromAnalysis flattens a typed analysis into the map form Complete reads.
// Non-finite floats are dropped so they take the field default.
func fromAnalysis(a *model.Analysis) map[string]any {
	m := map[string]any{
		"auraScore": a.AuraScore,
		"sentiment": map[string]any{
			"positive": finite(a.Sentiment.Positive),
			"negative": finite(a.Sentiment.Negative),
			"neutral":  finite(a.Sentiment.Neutral),
			"dominant": a.Sentiment.Dominant,
		},
		"personality": map[string]any{
			"traits":        anyList(a.Personality.Traits),
			"dominantTrait": a.Personality.DominantTrait,
			"confidence":    finite(a.Personality.Confidence),
		},
		"engagement": map[string]any{
			"avgLikes":        a.Engagement.AvgLikes,
			"avgRetweets":     a.Engagement.AvgRetweets,
			"avgReplies":      a.Engagement.AvgReplies,
			"totalEngagement": a.Engagement.TotalEngagement,
			"engagementRate":  finite(a.Engagement.EngagementRate),
		},
		"writingStyle": map[string]any{
			"tone":        a.WritingStyle.Tone,
			"formality":   finite(a.WritingStyle.Formality),
			"emotiveness": finite(a.WritingStyle.Emotiveness),
			"clarity":     finite(a.WritingStyle.Clarity),
		},
		"timePatterns": map[string]any{
			"mostActiveHour":   a.TimePatterns.MostActiveHour,
			"mostActiveDay":    a.TimePatterns.MostActiveDay,
			"postingFrequency": finite(a.TimePatterns.PostingFrequency),
		},
		"viralPotential": map[string]any{
			"score":   a.ViralPotential.Score,
			"factors": anyList(a.ViralPotential.Factors),
		},
		"summary": a.Summary,
	}

	topics := make([]any, 0, len(a.Topics))
	for _, t := range a.Topics {
		topics = append(topics, map[string]any{
			"name":      t.Name,
			"frequency": finite(t.Frequency),
			"sentiment": finite(t.Sentiment),
		})
	}
	m["topics"] = topics

	series := make([]any, 0, len(a.TimeSeriesData))
	for _, p := range a.TimeSeriesData {
		series = append(series, map[string]any{
			"date":       p.Date,
			"sentiment":  finite(p.Sentiment),
			"engagement": finite(p.Engagement),
			"auraScore":  finite(p.AuraScore),
		})
	}
	m["timeSeriesData"] = series

	if a.UserData != nil {
		if b, err := json.Marshal(a.UserData); err == nil {
			m["userData"] = decode(b)
		}
	}
	return m
}

// finite returns nil for NaN and infinities.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func anyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
