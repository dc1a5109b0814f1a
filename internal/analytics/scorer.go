// Package analytics computes the heuristic aura score and the auxiliary
// metrics of an Analysis from normalized posts or profile counts.
package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"auralytics/internal/config"
	"auralytics/internal/model"
)

// Strategy names accepted in configuration.
const (
	StrategyEngagement = "engagement"
	StrategyCounts     = "counts"
	StrategyTier       = "tier"
)

// Input is everything a strategy may look at.
type Input struct {
	Handle  string
	Posts   []model.Post
	Profile *model.Profile
	Now     time.Time
}

func (in Input) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

// Strategy turns an Input into a raw Analysis. Output is not guaranteed to be
// complete or in range; the guard finishes it.
type Strategy interface {
	Name() string
	Score(in Input) model.Analysis
}

// FromConfig returns the configured strategy.
func FromConfig(cfg config.ScoringConfig, r Rand) (Strategy, error) {
	if r == nil {
		r = NewRand(cfg.Seed)
	}
	switch strings.ToLower(cfg.Strategy) {
	case "", StrategyEngagement:
		return EngagementStrategy{Rand: r}, nil
	case StrategyCounts:
		return CountStrategy{Rand: r}, nil
	case StrategyTier:
		return NewTierStrategy(r, cfg.AllowList), nil
	}
	return nil, fmt.Errorf("unknown scoring strategy %q", cfg.Strategy)
}

// EngagementStrategy scores from post engagement, or from follower counts
// when no posts are available but the profile carries them.
type EngagementStrategy struct {
	Rand Rand
}

func (EngagementStrategy) Name() string { return StrategyEngagement }

func (s EngagementStrategy) Score(in Input) model.Analysis {
	if len(in.Posts) == 0 {
		if followers, ok := in.Profile.Followers(); ok {
			return countPath(s.Rand, in, followers, in.Profile.Following())
		}
	}
	return postsPath(s.Rand, in)
}

// CountStrategy always scores from follower/following counts. Unknown counts are 0.
type CountStrategy struct {
	Rand Rand
}

func (CountStrategy) Name() string { return StrategyCounts }

func (s CountStrategy) Score(in Input) model.Analysis {
	followers, _ := in.Profile.Followers()
	return countPath(s.Rand, in, followers, in.Profile.Following())
}

// TierStrategy assigns the score by policy: allow-listed handles get their
// fixed score, verified accounts land in [80,100] and everyone else in [0,79].
// Only the score is policy; the rest comes from the engagement path.
type TierStrategy struct {
	Rand      Rand
	AllowList map[string]int
}

func NewTierStrategy(r Rand, allow map[string]int) TierStrategy {
	norm := make(map[string]int, len(allow))
	for k, v := range allow {
		norm[strings.ToLower(strings.TrimPrefix(k, "@"))] = v
	}
	return TierStrategy{Rand: r, AllowList: norm}
}

func (TierStrategy) Name() string { return StrategyTier }

func (s TierStrategy) Score(in Input) model.Analysis {
	a := EngagementStrategy{Rand: s.Rand}.Score(in)
	score, ok := s.AllowList[strings.ToLower(in.Handle)]
	switch {
	case ok:
		score = model.ClampInt(score, 0, 100)
	case in.Profile.Verified():
		score = model.ClampInt(80+int(math.Floor(s.Rand.Float64()*21)), 80, 100)
	default:
		score = model.ClampInt(int(math.Floor(s.Rand.Float64()*80)), 0, 79)
	}
	a.AuraScore = score
	a.TierName = model.TierFor(score)
	a.ViralPotential.Score = min(100, score+5)
	a.TimeSeriesData = TimeSeries(s.Rand, in.now(), score, a.Sentiment.Positive, a.Engagement.EngagementRate)
	return a
}

func postsPath(r Rand, in Input) model.Analysis {
	n := float64(len(in.Posts))
	var likes, rts, replies float64
	for _, p := range in.Posts {
		likes += float64(p.PublicMetrics.LikeCount)
		rts += float64(p.PublicMetrics.RetweetCount)
		replies += float64(p.PublicMetrics.ReplyCount)
	}
	div := math.Max(1, n)
	likeAvg, rtAvg, replyAvg := likes/div, rts/div, replies/div
	sum := likeAvg + rtAvg + replyAvg

	rate := math.Min(1, sum/100)
	base := math.Min(85, math.Log10(math.Max(1, likeAvg+1))*20+rate*40)
	score := model.ClampInt(int(math.Floor(base+uniform(r, -5, 5))), 20, 100)

	a := placeholder(in, score)
	a.Engagement = model.Engagement{
		AvgLikes:        int(math.Floor(likeAvg)),
		AvgRetweets:     int(math.Floor(rtAvg)),
		AvgReplies:      int(math.Floor(replyAvg)),
		TotalEngagement: int(math.Floor(sum * n)),
		EngagementRate:  rate,
	}
	a.TimeSeriesData = TimeSeries(r, in.now(), score, a.Sentiment.Positive, rate)
	return a
}

func countPath(r Rand, in Input, followers, following int) model.Analysis {
	f := float64(max(0, followers))
	ratio := model.Clamp(f/math.Max(1, float64(following)), 0, 10)
	raw := 10 + math.Log10(f+1)*12 + ratio*3 + uniform(r, -5, 5)
	score := model.ClampInt(int(math.Floor(raw)), 10, 100)

	likes := math.Floor(f * 0.02)
	rts := math.Floor(f * 0.005)
	replies := math.Floor(f * 0.003)
	rate := math.Min(1, (likes+rts+replies)/math.Max(1, f))

	a := placeholder(in, score)
	a.Engagement = model.Engagement{
		AvgLikes:        int(likes),
		AvgRetweets:     int(rts),
		AvgReplies:      int(replies),
		TotalEngagement: int(likes + rts + replies),
		EngagementRate:  rate,
	}
	a.TimeSeriesData = TimeSeries(r, in.now(), score, a.Sentiment.Positive, rate)
	return a
}

// placeholder fills the fields the heuristic does not derive from text.
// These are fixed values, not measurements.
func placeholder(in Input, score int) model.Analysis {
	return model.Analysis{
		AuraScore: score,
		TierName:  model.TierFor(score),
		Sentiment: model.Sentiment{Positive: 0.5, Negative: 0.2, Neutral: 0.3, Dominant: model.SentimentPositive},
		Personality: model.Personality{
			Traits:        []string{"Analytical", "Engaging", "Curious"},
			DominantTrait: "Engaging",
			Confidence:    0.8,
		},
		Topics: []model.Topic{
			{Name: "Technology", Frequency: 0.35, Sentiment: 0.7},
			{Name: "Personal Thoughts", Frequency: 0.25, Sentiment: 0.6},
			{Name: "Current Events", Frequency: 0.18, Sentiment: 0.5},
		},
		WritingStyle: model.WritingStyle{Tone: "casual", Formality: 0.4, Emotiveness: 0.6, Clarity: 0.75},
		TimePatterns: model.TimePatterns{MostActiveHour: 14, MostActiveDay: "Tuesday", PostingFrequency: 2},
		ViralPotential: model.ViralPotential{
			Score:   min(100, score+5),
			Factors: []string{"Engagement consistency", "Relevant topics"},
		},
		Summary:  Summary(in.Handle, in.Profile),
		UserData: in.Profile,
	}
}

// Summary is the one-line description of the account.
func Summary(handle string, p *model.Profile) string {
	who := "this account"
	if handle != "" {
		who = "@" + handle
	}
	if n, ok := p.Followers(); ok {
		return fmt.Sprintf("A concise, engagement-driven profile for %s with %s followers and steady audience interactions.",
			who, humanize.Comma(int64(n)))
	}
	return fmt.Sprintf("A concise, engagement-driven profile for %s with steady audience interactions.", who)
}
