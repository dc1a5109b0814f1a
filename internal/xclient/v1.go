package xclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is a v1.1 timeline entry as returned by the platform.
type Status struct {
	IDStr                string `json:"id_str"`
	CreatedAt            string `json:"created_at"`
	FullText             string `json:"full_text"`
	Text                 string `json:"text"`
	FavoriteCount        int    `json:"favorite_count"`
	RetweetCount         int    `json:"retweet_count"`
	ReplyCount           int    `json:"reply_count"`
	QuoteCount           int    `json:"quote_count"`
	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
	IsQuoteStatus        bool   `json:"is_quote_status"`
	QuotedStatusIDStr    string `json:"quoted_status_id_str"`
	RetweetedStatus      *struct {
		IDStr string `json:"id_str"`
	} `json:"retweeted_status"`
	User V1User `json:"user"`
}

// V1User is the author object embedded in each status.
type V1User struct {
	IDStr                string `json:"id_str"`
	ScreenName           string `json:"screen_name"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	Verified             bool   `json:"verified"`
	FollowersCount       int    `json:"followers_count"`
	FriendsCount         int    `json:"friends_count"`
	StatusesCount        int    `json:"statuses_count"`
	ListedCount          int    `json:"listed_count"`
	ProfileImageURLHTTPS string `json:"profile_image_url_https"`
	Location             string `json:"location"`
	URL                  string `json:"url"`
	CreatedAt            string `json:"created_at"`
}

// TimelineQuery bounds a v1.1 user timeline fetch.
type TimelineQuery struct {
	Max             int
	ExcludeReplies  bool
	IncludeRetweets bool
}

// V1Client supports X API v1.1 user timelines via OAuth 1.0a.
type V1Client struct {
	Base           *HTTPClient
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	nowFn          func() time.Time
	nonceFn        func() string
}

func NewV1Client(base *HTTPClient, ck, cs, at, as string) *V1Client {
	return &V1Client{
		Base:           base,
		BaseURL:        "https://api.twitter.com/1.1",
		ConsumerKey:    ck,
		ConsumerSecret: cs,
		AccessToken:    at,
		AccessSecret:   as,
		nowFn:          time.Now,
		nonceFn:        func() string { return strconv.FormatInt(rand.Int64(), 36) },
	}
}

// Enabled reports whether the full OAuth1.0a credential set is present.
func (c *V1Client) Enabled() bool {
	return c != nil && c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// GetUserTimeline returns up to q.Max statuses of screenName, newest first,
// paging backwards with max_id.
func (c *V1Client) GetUserTimeline(ctx context.Context, screenName string, q TimelineQuery) ([]Status, error) {
	if screenName == "" {
		return nil, ErrEmptyUsername
	}
	want := clamp(q.Max, 1, 300)
	endpoint := c.BaseURL + "/statuses/user_timeline.json"
	out := make([]Status, 0, want)
	maxID := ""
	for page := 0; page < maxPages && len(out) < want; page++ {
		params := map[string]string{
			"screen_name":     screenName,
			"count":           strconv.Itoa(clamp(want-len(out), 1, 200)),
			"tweet_mode":      "extended",
			"exclude_replies": strconv.FormatBool(q.ExcludeReplies),
			"include_rts":     strconv.FormatBool(q.IncludeRetweets),
		}
		if maxID != "" {
			params["max_id"] = maxID
		}
		var raw []Status
		sign := func(req *http.Request) { c.oauth1Sign(req, params) }
		if err := c.Base.getJSON(ctx, "/statuses/user_timeline", endpoint+"?"+encodeQuery(params), sign, &raw); err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, err
		}
		if len(raw) == 0 {
			break
		}
		out = append(out, raw...)
		next, ok := olderThan(raw[len(raw)-1].IDStr)
		if !ok {
			break
		}
		maxID = next
	}
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

// olderThan returns id-1, the max_id that excludes id itself.
func olderThan(id string) (string, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return "", false
	}
	return strconv.FormatUint(n-1, 10), true
}

func (c *V1Client) oauth1Sign(req *http.Request, queryParams map[string]string) {
	oauth := map[string]string{
		"oauth_consumer_key":     c.ConsumerKey,
		"oauth_nonce":            c.nonceFn(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(c.nowFn().Unix(), 10),
		"oauth_token":            c.AccessToken,
		"oauth_version":          "1.0",
	}
	all := map[string]string{}
	for k, v := range oauth {
		all[k] = v
	}
	for k, v := range queryParams {
		all[k] = v
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	paramParts := make([]string, 0, len(keys))
	for _, k := range keys {
		paramParts = append(paramParts, rfc3986(k)+"="+rfc3986(all[k]))
	}
	paramStr := strings.Join(paramParts, "&")
	baseURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	base := req.Method + "&" + rfc3986(baseURL) + "&" + rfc3986(paramStr)
	signingKey := rfc3986(c.ConsumerSecret) + "&" + rfc3986(c.AccessSecret)
	mac := hmac.New(sha1.New, []byte(signingKey))
	_, _ = mac.Write([]byte(base))
	oauth["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	hdrKeys := make([]string, 0, len(oauth))
	for k := range oauth {
		hdrKeys = append(hdrKeys, k)
	}
	sort.Strings(hdrKeys)
	authParts := make([]string, 0, len(hdrKeys))
	for _, k := range hdrKeys {
		authParts = append(authParts, fmt.Sprintf("%s=\"%s\"", rfc3986(k), rfc3986(oauth[k])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(authParts, ", "))
	req.Header.Set("Accept", "application/json")
}

func encodeQuery(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, rfc3986(k)+"="+rfc3986(m[k]))
	}
	return strings.Join(parts, "&")
}

// RFC 3986 percent-encoding for OAuth
func rfc3986(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"), "*", "%2A")
}
