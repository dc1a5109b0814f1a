package model

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Weekdays lists the accepted most-active day names.
var Weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

type Sentiment struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Dominant string  `json:"dominant"`
}

type Personality struct {
	Traits        []string `json:"traits"`
	DominantTrait string   `json:"dominantTrait"`
	Confidence    float64  `json:"confidence"`
}

type Topic struct {
	Name      string  `json:"name"`
	Frequency float64 `json:"frequency"`
	Sentiment float64 `json:"sentiment"`
}

type Engagement struct {
	AvgLikes        int     `json:"avgLikes"`
	AvgRetweets     int     `json:"avgRetweets"`
	AvgReplies      int     `json:"avgReplies"`
	TotalEngagement int     `json:"totalEngagement"`
	EngagementRate  float64 `json:"engagementRate"`
}

type WritingStyle struct {
	Tone        string  `json:"tone"`
	Formality   float64 `json:"formality"`
	Emotiveness float64 `json:"emotiveness"`
	Clarity     float64 `json:"clarity"`
}

type TimePatterns struct {
	MostActiveHour   int     `json:"mostActiveHour"`
	MostActiveDay    string  `json:"mostActiveDay"`
	PostingFrequency float64 `json:"postingFrequency"`
}

type ViralPotential struct {
	Score   int      `json:"score"`
	Factors []string `json:"factors"`
}

// SeriesPoint is one day of the dashboard time series. Values are in [0,100].
type SeriesPoint struct {
	Date       string  `json:"date"`
	Sentiment  float64 `json:"sentiment"`
	Engagement float64 `json:"engagement"`
	AuraScore  float64 `json:"auraScore"`
}

// Analysis is the scored result for one account.
type Analysis struct {
	AuraScore      int            `json:"auraScore"`
	TierName       string         `json:"tierName"`
	Sentiment      Sentiment      `json:"sentiment"`
	Personality    Personality    `json:"personality"`
	Topics         []Topic        `json:"topics"`
	Engagement     Engagement     `json:"engagement"`
	WritingStyle   WritingStyle   `json:"writingStyle"`
	TimePatterns   TimePatterns   `json:"timePatterns"`
	ViralPotential ViralPotential `json:"viralPotential"`
	Summary        string         `json:"summary"`
	TimeSeriesData []SeriesPoint  `json:"timeSeriesData"`
	UserData       *Profile       `json:"userData,omitempty"`
}
