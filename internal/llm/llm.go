// Package llm asks an external model for an Analysis. Its output is untyped
// and untrusted; callers pass it through the guard and fall back to the
// heuristic scorer on any error.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"auralytics/internal/model"
	"auralytics/internal/util"
)

// sampleSize and sampleChars bound what goes into the prompt.
const (
	sampleSize  = 50
	sampleChars = 240
)

// ErrEmptyReply is returned when the model produced no text.
var ErrEmptyReply = errors.New("llm: empty reply")

// Completer sends one prompt and returns the raw text reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Generator produces a raw analysis from posts.
type Generator struct {
	completer Completer
}

func NewGenerator(c Completer) *Generator { return &Generator{completer: c} }

// Generate returns the decoded JSON object the model replied with.
func (g *Generator) Generate(ctx context.Context, handle string, posts []model.Post) (map[string]any, error) {
	if g == nil || g.completer == nil {
		return nil, errors.New("llm: generator not configured")
	}
	text, err := g.completer.Complete(ctx, systemPrompt, BuildPrompt(handle, posts))
	if err != nil {
		return nil, err
	}
	return Decode(text)
}

const systemPrompt = "You are an expert social media analyst. Return ONLY compact JSON matching the exact schema requested. No backticks, no prose, JSON only."

const schema = `{
  "auraScore": number (20..100),
  "sentiment": {"positive": number (0..1), "negative": number (0..1), "neutral": number (0..1), "dominant": "positive" | "negative" | "neutral"},
  "personality": {"traits": string[], "dominantTrait": string, "confidence": number (0..1)},
  "topics": Array<{"name": string, "frequency": number (0..1), "sentiment": number (0..1)}>,
  "engagement": {"avgLikes": number, "avgRetweets": number, "avgReplies": number, "totalEngagement": number, "engagementRate": number (0..1)},
  "writingStyle": {"tone": string, "formality": number (0..1), "emotiveness": number (0..1), "clarity": number (0..1)},
  "timePatterns": {"mostActiveHour": number (0..23), "mostActiveDay": string, "postingFrequency": number},
  "viralPotential": {"score": number (0..100), "factors": string[]},
  "summary": string
}`

type sampleEntry struct {
	Text    string `json:"text"`
	Likes   int    `json:"likes"`
	RTs     int    `json:"rts"`
	Replies int    `json:"replies"`
}

// BuildPrompt carries the handle, post count, floored averages and a trimmed sample.
func BuildPrompt(handle string, posts []model.Post) string {
	n := len(posts)
	var likes, rts, replies int
	sample := make([]sampleEntry, 0, min(n, sampleSize))
	for i, p := range posts {
		likes += p.PublicMetrics.LikeCount
		rts += p.PublicMetrics.RetweetCount
		replies += p.PublicMetrics.ReplyCount
		if i < sampleSize {
			sample = append(sample, sampleEntry{
				Text:    util.Truncate(p.Text, sampleChars),
				Likes:   p.PublicMetrics.LikeCount,
				RTs:     p.PublicMetrics.RetweetCount,
				Replies: p.PublicMetrics.ReplyCount,
			})
		}
	}
	div := max(1, n)
	user := "unknown"
	if handle != "" {
		user = "@" + handle
	}
	sampleJSON, _ := json.Marshal(sample)

	var b strings.Builder
	fmt.Fprintf(&b, "User: %s\n", user)
	fmt.Fprintf(&b, "TweetsCount: %d\n", n)
	fmt.Fprintf(&b, "Averages: likes=%d, retweets=%d, replies=%d\n", likes/div, rts/div, replies/div)
	b.WriteString("Sample (trimmed):\n")
	b.Write(sampleJSON)
	b.WriteString("\n\nTask: Produce an analysis strictly in the JSON schema below.\n")
	b.WriteString("Rules:\n- Aura score range is 20..100.\n- Probabilities must be 0..1.\n- Do NOT fabricate follower counts.\n\n")
	b.WriteString("Schema:\n")
	b.WriteString(schema)
	return b.String()
}

// Decode strips code fences and surrounding prose and decodes a JSON object.
func Decode(text string) (map[string]any, error) {
	s := cleanJSON(text)
	if s == "" {
		return nil, ErrEmptyReply
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("llm: undecodable reply: %w", err)
	}
	if out == nil {
		return nil, errors.New("llm: reply is not an object")
	}
	return out, nil
}

func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
