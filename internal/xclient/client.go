package xclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"auralytics/internal/metrics"
)

// ErrEmptyUsername is returned when a lookup is attempted without a handle.
var ErrEmptyUsername = errors.New("empty username")

// maxPages caps pagination on the user tweets endpoint.
const maxPages = 5

// XClient defines methods we use from X API v2.
type XClient interface {
	Enabled() bool
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserTweets(ctx context.Context, userID string, q TweetQuery) ([]Tweet, error)
}

// User is the v2 user object as returned by the platform.
type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	CreatedAt       string `json:"created_at"`
	Verified        bool   `json:"verified"`
	Description     string `json:"description"`
	URL             string `json:"url"`
	Location        string `json:"location"`
	ProfileImageURL string `json:"profile_image_url"`
	PublicMetrics   struct {
		FollowersCount int `json:"followers_count"`
		FollowingCount int `json:"following_count"`
		TweetCount     int `json:"tweet_count"`
		ListedCount    int `json:"listed_count"`
	} `json:"public_metrics"`
}

// Tweet is the v2 tweet object as returned by the platform.
type Tweet struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	CreatedAt       string `json:"created_at"`
	AuthorID        string `json:"author_id"`
	InReplyToUserID string `json:"in_reply_to_user_id"`
	PublicMetrics   struct {
		LikeCount    int `json:"like_count"`
		ReplyCount   int `json:"reply_count"`
		RetweetCount int `json:"retweet_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

// TweetQuery bounds a user tweets fetch. Exclusions are hints; callers re-filter.
type TweetQuery struct {
	Max             int
	ExcludeReplies  bool
	ExcludeRetweets bool
}

// HTTPClient is a simple bearer-token client for X API v2.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

// Option customises an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(u string) Option { return func(c *HTTPClient) { c.baseURL = u } }

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRetry overrides attempt count and base backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *HTTPClient) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if backoff > 0 {
			c.baseBackoff = backoff
		}
	}
}

func NewHTTPClient(bearerToken string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:     "https://api.twitter.com/2",
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     newDefaultLimiter(),
		maxAttempts: getEnvInt("X_API_MAX_ATTEMPTS", 5),
		baseBackoff: time.Duration(getEnvInt("X_API_BASE_BACKOFF_MS", 500)) * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Enabled reports whether a bearer token is configured.
func (c *HTTPClient) Enabled() bool { return c != nil && c.bearerToken != "" }

func (c *HTTPClient) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

// getJSON performs a rate-limited, retried GET and decodes the body into v.
func (c *HTTPClient) getJSON(ctx context.Context, endpoint, u string, sign func(*http.Request), v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	sign(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, endpoint, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("x api %s status %d", endpoint, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *HTTPClient) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var out User
	if username == "" {
		return out, ErrEmptyUsername
	}
	u := fmt.Sprintf("%s/users/by/username/%s?user.fields=public_metrics,created_at,verified,description,url,location,profile_image_url",
		c.baseURL, url.PathEscape(username))
	var raw struct {
		Data   *User `json:"data"`
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := c.getJSON(ctx, "/users/by/username", u, c.auth, &raw); err != nil {
		return out, err
	}
	if raw.Data == nil {
		if len(raw.Errors) > 0 {
			return out, fmt.Errorf("x api user lookup: %s", raw.Errors[0].Detail)
		}
		return out, fmt.Errorf("x api user lookup: no data for %q", username)
	}
	return *raw.Data, nil
}

// GetUserTweets pages through a user's recent tweets until q.Max is reached,
// the platform stops returning a next_token, or maxPages is hit.
func (c *HTTPClient) GetUserTweets(ctx context.Context, userID string, q TweetQuery) ([]Tweet, error) {
	if userID == "" {
		return nil, errors.New("empty user id")
	}
	want := clamp(q.Max, 1, 300)
	var exclude []string
	if q.ExcludeReplies {
		exclude = append(exclude, "replies")
	}
	if q.ExcludeRetweets {
		exclude = append(exclude, "retweets")
	}
	out := make([]Tweet, 0, want)
	token := ""
	for page := 0; page < maxPages && len(out) < want; page++ {
		params := url.Values{}
		// the endpoint rejects max_results below 5
		params.Set("max_results", strconv.Itoa(clamp(want-len(out), 5, 100)))
		params.Set("tweet.fields", "created_at,public_metrics,referenced_tweets,in_reply_to_user_id,author_id")
		if len(exclude) > 0 {
			params.Set("exclude", strings.Join(exclude, ","))
		}
		if token != "" {
			params.Set("pagination_token", token)
		}
		u := fmt.Sprintf("%s/users/%s/tweets?%s", c.baseURL, url.PathEscape(userID), params.Encode())
		var raw struct {
			Data []Tweet `json:"data"`
			Meta struct {
				NextToken string `json:"next_token"`
			} `json:"meta"`
		}
		if err := c.getJSON(ctx, "/users/tweets", u, c.auth, &raw); err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, err
		}
		out = append(out, raw.Data...)
		if raw.Meta.NextToken == "" {
			break
		}
		token = raw.Meta.NextToken
	}
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (c *HTTPClient) doWithRetry(ctx context.Context, endpoint string, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(endpoint)
		}
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				if attempt == c.maxAttempts {
					return resp, nil
				}
				ra := resp.Header.Get("Retry-After")
				_ = resp.Body.Close()
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
				wait := backoff
				if ra != "" {
					if secs, err := strconv.Atoi(ra); err == nil {
						wait = time.Duration(secs) * time.Second
					} else if t, err := http.ParseTime(ra); err == nil {
						if d := time.Until(t); d > 0 {
							wait = d
						}
					}
				}
				// jitter +/-20%
				jitter := time.Duration(float64(wait) * 0.2)
				if jitter > 0 {
					wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil && i > 0 {
		return i
	}
	return def
}
