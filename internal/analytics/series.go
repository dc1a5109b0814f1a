package analytics

import (
	"math"
	"time"

	"auralytics/internal/model"
)

// SeriesDays is the length of the dashboard time series.
const SeriesDays = 30

type channel struct {
	base, amp, period, phase, noise float64
}

func (c channel) at(r Rand, i int) float64 {
	v := c.base + c.amp*math.Sin(2*math.Pi*float64(i)/c.period+c.phase) + uniform(r, -c.noise, c.noise)
	return round2(model.Clamp(v, 0, 100))
}

// TimeSeries synthesizes SeriesDays daily points ending on now's date. Each
// channel is a sinusoid around its base plus bounded noise, clamped to [0,100].
func TimeSeries(r Rand, now time.Time, score int, sentiment, rate float64) []model.SeriesPoint {
	sent := channel{base: sentiment * 100, amp: 8, period: 7, noise: 4}
	eng := channel{base: model.Clamp(rate*100, 5, 95), amp: 10, period: 10, phase: math.Pi / 3, noise: 5}
	aura := channel{base: float64(score), amp: 4, period: 14, phase: math.Pi / 2, noise: 2}
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]model.SeriesPoint, SeriesDays)
	for i := 0; i < SeriesDays; i++ {
		out[i] = model.SeriesPoint{
			Date:       day.AddDate(0, 0, i-SeriesDays+1).Format(time.DateOnly),
			Sentiment:  sent.at(r, i),
			Engagement: eng.at(r, i),
			AuraScore:  aura.at(r, i),
		}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
