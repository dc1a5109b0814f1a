package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"auralytics/internal/model"
	"auralytics/internal/util"
)

// SocialCounts are follower and following counts for a handle.
// Following is estimated from followers when no page exposed it.
type SocialCounts struct {
	Username           string `json:"username"`
	Followers          int    `json:"followers"`
	Following          int    `json:"following"`
	FollowingEstimated bool   `json:"followingEstimated"`
	Source             string `json:"source"`
}

var followingPattern = regexp.MustCompile(`(?i)(\d[\d,.]*[KMB]?)\s+Following`)

// SocialProbe reads public follower counts without API credentials.
type SocialProbe struct {
	SyndicationURL string
	MobileURL      string
	UserAgent      string
	Client         *http.Client
}

func NewSocialProbe(timeout time.Duration) *SocialProbe {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SocialProbe{
		SyndicationURL: "https://cdn.syndication.twimg.com/widgets/followbutton/info.json",
		MobileURL:      "https://mobile.twitter.com",
		UserAgent:      DefaultBrowserUserAgent,
		Client:         &http.Client{Timeout: timeout},
	}
}

// EstimateFollowing is the fallback following count derived from followers.
func EstimateFollowing(followers int) int {
	return model.ClampInt(followers*4/10, 10, 2000)
}

// Counts never fails: unreachable sources leave zeros and the estimate fills in.
func (p *SocialProbe) Counts(ctx context.Context, username string) SocialCounts {
	out := SocialCounts{Username: username, Source: "none"}
	if username == "" {
		out.Following = EstimateFollowing(0)
		out.FollowingEstimated = true
		return out
	}
	if n, err := p.followers(ctx, username); err == nil {
		out.Followers = n
		out.Source = "syndication"
	}
	if n, err := p.following(ctx, username); err == nil {
		out.Following = n
	} else {
		out.Following = EstimateFollowing(out.Followers)
		out.FollowingEstimated = true
	}
	return out
}

func (p *SocialProbe) get(ctx context.Context, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept", accept)
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, u)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func (p *SocialProbe) followers(ctx context.Context, username string) (int, error) {
	body, err := p.get(ctx, p.SyndicationURL+"?screen_names="+url.QueryEscape(username), "application/json")
	if err != nil {
		return 0, err
	}
	var raw []struct {
		FollowersCount int    `json:"followers_count"`
		ScreenName     string `json:"screen_name"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("syndication: no entry for %s", username)
	}
	return raw[0].FollowersCount, nil
}

func (p *SocialProbe) following(ctx context.Context, username string) (int, error) {
	body, err := p.get(ctx, strings.TrimRight(p.MobileURL, "/")+"/"+url.PathEscape(username), "text/html")
	if err != nil {
		return 0, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	m := followingPattern.FindStringSubmatch(visibleText(doc))
	if m == nil {
		return 0, fmt.Errorf("mobile: following count not found")
	}
	n, ok := util.ParseCount(m[1])
	if !ok {
		return 0, fmt.Errorf("mobile: bad following count %q", m[1])
	}
	return n, nil
}

// visibleText joins the page's text nodes with spaces. Attribute values and
// script or style bodies are not part of it.
func visibleText(doc *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		case html.ElementNode:
			switch dom.TagName(n) {
			case "script", "style", "noscript":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(parts, " ")
}
