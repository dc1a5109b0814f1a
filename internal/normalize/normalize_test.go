package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auralytics/internal/model"
	"auralytics/internal/scraper"
	"auralytics/internal/xclient"
)

func TestTimestamp(t *testing.T) {
	cases := map[string]string{
		"2024-01-02T15:04:05.000Z":       "2024-01-02T15:04:05Z",
		"2024-01-02T17:04:05+02:00":      "2024-01-02T15:04:05Z",
		"Tue Jan 02 15:04:05 +0000 2024": "2024-01-02T15:04:05Z",
		"Jan 2, 2024 · 3:04 PM UTC":      "2024-01-02T15:04:00Z",
		"10:00 AM - 1 Mar 2012":          "2012-03-01T10:00:00Z",
		"2024-01-02":                     "2024-01-02T00:00:00Z",
		"":                               "",
		"not a date":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Timestamp(in), in)
	}
}

func TestFromV2(t *testing.T) {
	var tw xclient.Tweet
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","text":"hi","created_at":"2024-05-01T10:00:00.000Z",
		"in_reply_to_user_id":"9",
		"public_metrics":{"like_count":5,"retweet_count":2,"reply_count":1,"quote_count":-3}}`), &tw))
	p := FromV2(tw)
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, "2024-05-01T10:00:00Z", p.CreatedAt)
	assert.Equal(t, model.Metrics{LikeCount: 5, RetweetCount: 2, ReplyCount: 1}, p.PublicMetrics)
	assert.True(t, p.IsReply())
	assert.Equal(t, SourceV2, p.Source)
}

func TestFromV1(t *testing.T) {
	s := xclient.Status{IDStr: "5", Text: "RT @bob: hello", FavoriteCount: 3, IsQuoteStatus: true}
	p := FromV1(s)
	assert.Equal(t, "RT @bob: hello", p.Text)
	assert.True(t, p.IsRetweet())
	assert.Equal(t, []model.Reference{{Type: model.RefRetweeted, ID: UnknownRef}, {Type: model.RefQuoted, ID: UnknownRef}}, p.ReferencedTweets)

	full := FromV1(xclient.Status{IDStr: "6", FullText: "long", Text: "short", InReplyToStatusIDStr: "4"})
	assert.Equal(t, "long", full.Text)
	assert.Equal(t, []model.Reference{{Type: model.RefRepliedTo, ID: "4"}}, full.ReferencedTweets)
}

func TestFromScraped(t *testing.T) {
	p := FromScraped(scraper.Item{
		ID: "7", Text: "scraped", Timestamp: "Jan 2, 2024 · 3:04 PM UTC",
		Likes: "1.2K", Retweets: "1,024", Replies: "", Quotes: "??", IsReply: true,
	})
	assert.Equal(t, model.Metrics{LikeCount: 1200, RetweetCount: 1024}, p.PublicMetrics)
	assert.Equal(t, "2024-01-02T15:04:00Z", p.CreatedAt)
	assert.True(t, p.IsReply())
	assert.False(t, p.IsRetweet())

	empty := FromScraped(scraper.Item{})
	assert.Equal(t, "", empty.ID)
	assert.Empty(t, empty.ReferencedTweets)
}

func TestFromMapGuardsTypes(t *testing.T) {
	p := FromMap(map[string]any{
		"id":            float64(123),
		"text":          "hello",
		"created_at":    true,
		"like_count":    "3.4K",
		"retweet_count": float64(-1),
		"reply_count":   math.Inf(1),
		"quote_count":   []any{1},
		"is_retweet":    "true",
	})
	assert.Equal(t, "123", p.ID)
	assert.Equal(t, "", p.CreatedAt)
	assert.Equal(t, model.Metrics{LikeCount: 3400}, p.PublicMetrics)
	assert.True(t, p.IsRetweet())

	nested := FromMap(map[string]any{
		"id":                "x",
		"public_metrics":    map[string]any{"like_count": float64(9)},
		"referenced_tweets": []any{map[string]any{"type": "quoted"}, "junk", map[string]any{"id": "1"}},
	})
	assert.Equal(t, 9, nested.PublicMetrics.LikeCount)
	assert.Equal(t, []model.Reference{{Type: model.RefQuoted, ID: UnknownRef}}, nested.ReferencedTweets)

	assert.Equal(t, model.Post{Source: SourceBrowser}, FromMap(nil))
}

func TestProfiles(t *testing.T) {
	var u xclient.User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"42","username":"alice","name":"Alice","verified":false,
		"public_metrics":{"followers_count":10,"following_count":2}}`), &u))
	p := ProfileFromV2(u)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, 10, *p.FollowersCount)
	assert.Nil(t, p.Bio)
	assert.False(t, p.Verified())

	assert.Nil(t, ProfileFromV1(xclient.V1User{}))
	v1 := ProfileFromV1(xclient.V1User{ScreenName: "bob", FriendsCount: 7, Verified: true})
	assert.Equal(t, 7, v1.Following())
	assert.True(t, v1.Verified())

	card := ProfileFromCard(&scraper.ProfileCard{Username: "carol", Followers: "12.5K", Following: "n/a", Verified: true})
	n, ok := card.Followers()
	assert.True(t, ok)
	assert.Equal(t, 12500, n)
	assert.Nil(t, card.FollowingCount)
	assert.Nil(t, ProfileFromCard(nil))
}
