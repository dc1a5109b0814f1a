// Package normalize maps every raw record shape produced by the fetch
// strategies into model.Post. All functions are total: no input is rejected
// and nothing is fabricated beyond the "unknown" reference id marker.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"auralytics/internal/model"
	"auralytics/internal/scraper"
	"auralytics/internal/util"
	"auralytics/internal/xclient"
)

// UnknownRef is the reference id used when a source only exposes the marker.
const UnknownRef = "unknown"

// Source labels recorded on normalized posts.
const (
	SourceV2      = "api_v2"
	SourceV1      = "api_v1"
	SourceMirror  = "mirror"
	SourceBrowser = "browser"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RubyDate,
	"Jan 2, 2006 · 3:04 PM MST",
	"2 Jan 2006 · 15:04 MST",
	"3:04 PM - 2 Jan 2006",
}

// Timestamp returns s as RFC 3339 UTC, or "" when it cannot be parsed.
func Timestamp(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	cleaned := strings.NewReplacer(" · ", " ", "·", " ").Replace(s)
	if t, err := dateparse.ParseIn(cleaned, time.UTC); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return ""
}

// FromV2 maps a v2 API tweet.
func FromV2(t xclient.Tweet) model.Post {
	p := model.Post{
		ID:        t.ID,
		Text:      t.Text,
		CreatedAt: Timestamp(t.CreatedAt),
		PublicMetrics: model.Metrics{
			LikeCount:    nonNeg(t.PublicMetrics.LikeCount),
			RetweetCount: nonNeg(t.PublicMetrics.RetweetCount),
			ReplyCount:   nonNeg(t.PublicMetrics.ReplyCount),
			QuoteCount:   nonNeg(t.PublicMetrics.QuoteCount),
		},
		Source: SourceV2,
	}
	for _, r := range t.ReferencedTweets {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: r.Type, ID: r.ID})
	}
	if t.InReplyToUserID != "" && !p.IsReply() {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefRepliedTo, ID: UnknownRef})
	}
	return p
}

// FromV1 maps a v1.1 timeline status.
func FromV1(s xclient.Status) model.Post {
	text := s.FullText
	if text == "" {
		text = s.Text
	}
	p := model.Post{
		ID:        s.IDStr,
		Text:      text,
		CreatedAt: Timestamp(s.CreatedAt),
		PublicMetrics: model.Metrics{
			LikeCount:    nonNeg(s.FavoriteCount),
			RetweetCount: nonNeg(s.RetweetCount),
			ReplyCount:   nonNeg(s.ReplyCount),
			QuoteCount:   nonNeg(s.QuoteCount),
		},
		Source: SourceV1,
	}
	if s.InReplyToStatusIDStr != "" {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefRepliedTo, ID: s.InReplyToStatusIDStr})
	}
	switch {
	case s.RetweetedStatus != nil:
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefRetweeted, ID: orUnknown(s.RetweetedStatus.IDStr)})
	case strings.HasPrefix(text, "RT @"):
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefRetweeted, ID: UnknownRef})
	}
	if s.IsQuoteStatus {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefQuoted, ID: orUnknown(s.QuotedStatusIDStr)})
	}
	return p
}

// FromScraped maps a mirror timeline item. Unparsable counts become 0.
func FromScraped(it scraper.Item) model.Post {
	p := model.Post{
		ID:        it.ID,
		Text:      it.Text,
		CreatedAt: Timestamp(it.Timestamp),
		PublicMetrics: model.Metrics{
			LikeCount:    count(it.Likes),
			RetweetCount: count(it.Retweets),
			ReplyCount:   count(it.Replies),
			QuoteCount:   count(it.Quotes),
		},
		Source: SourceMirror,
	}
	if it.IsReply {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefRepliedTo, ID: UnknownRef})
	}
	if it.IsRetweet {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefRetweeted, ID: UnknownRef})
	}
	if it.IsQuote {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefQuoted, ID: UnknownRef})
	}
	return p
}

// FromMap maps an open record such as the headless browser output or a
// decoded JSON object of unknown shape. Each field is type-guarded.
func FromMap(m map[string]any) model.Post {
	p := model.Post{Source: SourceBrowser}
	if m == nil {
		return p
	}
	p.ID = str(first(m, "id", "id_str", "tweetId"))
	p.Text = str(first(m, "text", "full_text", "content"))
	p.CreatedAt = Timestamp(str(first(m, "created_at", "createdAt", "timestamp", "date")))

	metrics := m
	if sub, ok := m["public_metrics"].(map[string]any); ok {
		metrics = sub
	}
	p.PublicMetrics = model.Metrics{
		LikeCount:    anyCount(first(metrics, "like_count", "likes", "favorite_count")),
		RetweetCount: anyCount(first(metrics, "retweet_count", "retweets")),
		ReplyCount:   anyCount(first(metrics, "reply_count", "replies")),
		QuoteCount:   anyCount(first(metrics, "quote_count", "quotes")),
	}

	if refs, ok := m["referenced_tweets"].([]any); ok {
		for _, r := range refs {
			rm, ok := r.(map[string]any)
			if !ok {
				continue
			}
			typ := str(rm["type"])
			if typ == "" {
				continue
			}
			p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: typ, ID: orUnknown(str(rm["id"]))})
		}
	}
	if truthy(first(m, "is_reply", "isReply")) && !p.IsReply() {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefRepliedTo, ID: UnknownRef})
	}
	if truthy(first(m, "is_retweet", "isRetweet")) && !p.IsRetweet() {
		p.ReferencedTweets = append(p.ReferencedTweets, model.Reference{Type: model.RefRetweeted, ID: UnknownRef})
	}
	return p
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	}
	return ""
}

func anyCount(v any) int {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return 0
		}
		if t > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(t)
	case int:
		return nonNeg(t)
	case int64:
		if t < 0 {
			return 0
		}
		if t > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(t)
	case json.Number:
		return count(t.String())
	case string:
		return count(t)
	}
	return 0
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case float64:
		return t != 0
	}
	return false
}

func count(s string) int {
	n, ok := util.ParseCount(s)
	if !ok {
		return 0
	}
	return n
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func orUnknown(id string) string {
	if id == "" {
		return UnknownRef
	}
	return id
}
