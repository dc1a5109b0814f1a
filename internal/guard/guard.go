// Package guard turns any raw analysis, typed or untyped, into a complete
// model.Analysis whose every field is present, finite and in range.
package guard

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"auralytics/internal/model"
)

// Defaults applied when a field is missing, mistyped or non-finite.
const (
	DefaultScore      = 50
	DefaultConfidence = 0.75
	DefaultTone       = "casual"
	DefaultHour       = 14
	DefaultDay        = "Tuesday"
	DefaultFrequency  = 2.0
	DefaultSummary    = "A balanced social presence with steady engagement and a recognisable voice."

	maxTraits  = 6
	maxTopics  = 6
	maxFactors = 5
	seriesDays = 30
)

var (
	defaultTraits  = []string{"Creative", "Analytical", "Engaging"}
	defaultFactors = []string{"Authentic voice", "Engaging content"}
	defaultTopics  = []model.Topic{
		{Name: "Technology", Frequency: 0.3, Sentiment: 0.7},
		{Name: "Personal Thoughts", Frequency: 0.25, Sentiment: 0.6},
		{Name: "Current Events", Frequency: 0.2, Sentiment: 0.5},
	}
)

// Guard completes analyses. Now dates the fallback time series.
type Guard struct {
	Now func() time.Time
}

func New() Guard { return Guard{Now: time.Now} }

func (g Guard) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// Complete never fails. Unusable input is treated as an empty object.
// Complete(Complete(x)) == Complete(x).
func (g Guard) Complete(raw any) model.Analysis {
	m := toMap(raw)

	var a model.Analysis
	a.AuraScore = intIn(m, "auraScore", DefaultScore, 0, 100)
	a.TierName = model.TierFor(a.AuraScore)
	a.Sentiment = sentiment(obj(m, "sentiment"))
	a.Personality = personality(obj(m, "personality"))
	a.Topics = topics(m["topics"])
	a.Engagement = engagement(obj(m, "engagement"))
	a.WritingStyle = writingStyle(obj(m, "writingStyle"))
	a.TimePatterns = timePatterns(obj(m, "timePatterns"))
	a.ViralPotential = viral(obj(m, "viralPotential"), a.AuraScore)
	a.Summary = text(m, "summary", DefaultSummary)
	a.TimeSeriesData = g.series(m["timeSeriesData"], a)
	a.UserData = profile(obj(m, "userData"))
	return a
}

func toMap(raw any) map[string]any {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case model.Analysis:
		return fromAnalysis(&v)
	case *model.Analysis:
		if v == nil {
			return map[string]any{}
		}
		return fromAnalysis(v)
	case []byte:
		return decode(v)
	case json.RawMessage:
		return decode(v)
	case string:
		return decode([]byte(v))
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return map[string]any{}
	}
	return decode(b)
}

func decode(b []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func sentiment(m map[string]any) model.Sentiment {
	s := model.Sentiment{
		Positive: floatIn(m, "positive", 0.5, 0, 1),
		Negative: floatIn(m, "negative", 0.2, 0, 1),
		Neutral:  floatIn(m, "neutral", 0.3, 0, 1),
	}
	switch d := strings.ToLower(strings.TrimSpace(str(m["dominant"]))); d {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
		s.Dominant = d
	default:
		s.Dominant = model.SentimentPositive
		best := s.Positive
		if s.Negative > best {
			s.Dominant, best = model.SentimentNegative, s.Negative
		}
		if s.Neutral > best {
			s.Dominant = model.SentimentNeutral
		}
	}
	return s
}

func personality(m map[string]any) model.Personality {
	p := model.Personality{
		Traits:     strList(m["traits"], maxTraits),
		Confidence: floatIn(m, "confidence", DefaultConfidence, 0, 1),
	}
	if len(p.Traits) == 0 {
		p.Traits = append([]string(nil), defaultTraits...)
	}
	p.DominantTrait = text(m, "dominantTrait", p.Traits[0])
	return p
}

func topics(v any) []model.Topic {
	list, _ := v.([]any)
	var out []model.Topic
	for _, e := range list {
		tm, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.Topic{
			Name:      text(tm, "name", "General"),
			Frequency: floatIn(tm, "frequency", 0.2, 0, 1),
			Sentiment: floatIn(tm, "sentiment", 0.6, 0, 1),
		})
		if len(out) == maxTopics {
			break
		}
	}
	if len(out) == 0 {
		return append([]model.Topic(nil), defaultTopics...)
	}
	return out
}

func engagement(m map[string]any) model.Engagement {
	return model.Engagement{
		AvgLikes:        intIn(m, "avgLikes", 0, 0, math.MaxInt32),
		AvgRetweets:     intIn(m, "avgRetweets", 0, 0, math.MaxInt32),
		AvgReplies:      intIn(m, "avgReplies", 0, 0, math.MaxInt32),
		TotalEngagement: intIn(m, "totalEngagement", 0, 0, math.MaxInt32),
		EngagementRate:  floatIn(m, "engagementRate", 0, 0, 1),
	}
}

func writingStyle(m map[string]any) model.WritingStyle {
	return model.WritingStyle{
		Tone:        text(m, "tone", DefaultTone),
		Formality:   floatIn(m, "formality", 0.4, 0, 1),
		Emotiveness: floatIn(m, "emotiveness", 0.6, 0, 1),
		Clarity:     floatIn(m, "clarity", 0.75, 0, 1),
	}
}

func timePatterns(m map[string]any) model.TimePatterns {
	tp := model.TimePatterns{
		MostActiveHour:   intIn(m, "mostActiveHour", DefaultHour, 0, 23),
		MostActiveDay:    DefaultDay,
		PostingFrequency: DefaultFrequency,
	}
	day := strings.TrimSpace(str(m["mostActiveDay"]))
	for _, d := range model.Weekdays {
		if strings.EqualFold(d, day) {
			tp.MostActiveDay = d
			break
		}
	}
	if f, ok := num(m["postingFrequency"]); ok && f > 0 {
		tp.PostingFrequency = f
	}
	return tp
}

func viral(m map[string]any, score int) model.ViralPotential {
	v := model.ViralPotential{
		Score:   intIn(m, "score", min(100, score+5), 0, 100),
		Factors: strList(m["factors"], maxFactors),
	}
	if len(v.Factors) == 0 {
		v.Factors = append([]string(nil), defaultFactors...)
	}
	return v
}

// series returns seriesDays consecutive daily points ending at the latest
// valid date, or today when no point is valid. Points are keyed by day and the
// last one given for a day wins; missing days get flat values.
func (g Guard) series(v any, a model.Analysis) []model.SeriesPoint {
	flat := func(date string) model.SeriesPoint {
		return model.SeriesPoint{
			Date:       date,
			Sentiment:  model.Clamp(a.Sentiment.Positive*100, 0, 100),
			Engagement: model.Clamp(a.Engagement.EngagementRate*100, 0, 100),
			AuraScore:  float64(a.AuraScore),
		}
	}

	list, _ := v.([]any)
	byDay := make(map[string]model.SeriesPoint, len(list))
	var last time.Time
	for _, e := range list {
		pm, ok := e.(map[string]any)
		if !ok {
			continue
		}
		d, ok := parseDate(str(pm["date"]))
		if !ok {
			continue
		}
		base := flat(d.Format(time.DateOnly))
		byDay[base.Date] = model.SeriesPoint{
			Date:       base.Date,
			Sentiment:  floatIn(pm, "sentiment", base.Sentiment, 0, 100),
			Engagement: floatIn(pm, "engagement", base.Engagement, 0, 100),
			AuraScore:  floatIn(pm, "auraScore", base.AuraScore, 0, 100),
		}
		if d.After(last) {
			last = d
		}
	}
	if len(byDay) == 0 {
		now := g.now().UTC()
		last = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	out := make([]model.SeriesPoint, 0, seriesDays)
	for i := seriesDays - 1; i >= 0; i-- {
		day := last.AddDate(0, 0, -i).Format(time.DateOnly)
		if p, ok := byDay[day]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, flat(day))
	}
	return out
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func profile(m map[string]any) *model.Profile {
	if len(m) == 0 {
		return nil
	}
	p := &model.Profile{
		ID:             str(m["id"]),
		Username:       str(m["username"]),
		Name:           optText(m["name"]),
		Bio:            optText(m["bio"]),
		ProfileImage:   optText(m["profileImage"]),
		Location:       optText(m["location"]),
		Website:        optText(m["website"]),
		JoinDate:       optText(m["joinDate"]),
		FollowersCount: optCount(m["followersCount"]),
		FollowingCount: optCount(m["followingCount"]),
		TweetCount:     optCount(m["tweetCount"]),
		ListedCount:    optCount(m["listedCount"]),
	}
	if b, ok := m["isVerified"].(bool); ok {
		p.IsVerified = model.Ptr(b)
	}
	if *p == (model.Profile{}) {
		return nil
	}
	return p
}

func obj(m map[string]any, key string) map[string]any {
	sub, _ := m[key].(map[string]any)
	return sub
}

// num reads a finite number. Numeric strings are accepted.
func num(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func floatIn(m map[string]any, key string, def, lo, hi float64) float64 {
	f, ok := num(m[key])
	if !ok {
		return def
	}
	return model.Clamp(f, lo, hi)
}

func intIn(m map[string]any, key string, def, lo, hi int) int {
	f, ok := num(m[key])
	if !ok {
		return def
	}
	return int(math.Round(model.Clamp(f, float64(lo), float64(hi))))
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func text(m map[string]any, key, def string) string {
	if s := strings.TrimSpace(str(m[key])); s != "" {
		return s
	}
	return def
}

func optText(v any) *string {
	if s := strings.TrimSpace(str(v)); s != "" {
		return &s
	}
	return nil
}

func optCount(v any) *int {
	f, ok := num(v)
	if !ok || f < 0 {
		return nil
	}
	n := int(math.Round(math.Min(f, math.MaxInt32)))
	return &n
}

func strList(v any, limit int) []string {
	list, _ := v.([]any)
	var out []string
	for _, e := range list {
		if s := strings.TrimSpace(str(e)); s != "" {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
