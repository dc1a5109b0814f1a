// Package scraper extracts posts and profile data from public HTML surfaces
// when the platform API is unavailable.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"auralytics/internal/logging"
	"auralytics/internal/util"
)

// MinBodyBytes is the smallest response accepted as a real timeline page.
const MinBodyBytes = 500

// Item is one timeline entry as found in mirror HTML. Counts are raw display strings.
type Item struct {
	ID        string
	Text      string
	Timestamp string
	Replies   string
	Retweets  string
	Quotes    string
	Likes     string
	IsReply   bool
	IsRetweet bool
	IsQuote   bool
}

// ProfileCard is the account header as found in mirror HTML.
type ProfileCard struct {
	FullName  string
	Username  string
	Bio       string
	Verified  bool
	Tweets    string
	Following string
	Followers string
	Likes     string
	JoinDate  string
	Location  string
	Website   string
	Avatar    string
}

// Page is what one host produced for a handle.
type Page struct {
	Host    string
	Items   []Item
	Profile *ProfileCard
}

var (
	selItem       = cascadia.MustCompile(".timeline-item")
	selLink       = cascadia.MustCompile("a.tweet-link, .tweet-date a, a[href*='/status/']")
	selContent    = cascadia.MustCompile(".tweet-content")
	selContentAlt = cascadia.MustCompile(".content")
	selDate       = cascadia.MustCompile(".tweet-date a[title]")
	selReplying   = cascadia.MustCompile(".replying-to")
	selRetweet    = cascadia.MustCompile(".retweet-header")
	selQuote      = cascadia.MustCompile(".quote")
	selStat       = cascadia.MustCompile(".tweet-stat")
	selShowMore   = cascadia.MustCompile(".show-more a[href]")
	selCard       = cascadia.MustCompile(".profile-card")

	statusID = regexp.MustCompile(`/status/(\d+)`)
)

// MirrorScraper reads profile timelines from a list of mirror hosts, in order.
type MirrorScraper struct {
	hosts     []string
	client    *http.Client
	userAgent string
	maxPages  int
}

// MirrorOption customises a MirrorScraper.
type MirrorOption func(*MirrorScraper)

func WithHTTPClient(c *http.Client) MirrorOption { return func(s *MirrorScraper) { s.client = c } }
func WithUserAgent(ua string) MirrorOption {
	return func(s *MirrorScraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}
func WithMaxPages(n int) MirrorOption {
	return func(s *MirrorScraper) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

func NewMirrorScraper(hosts []string, timeout time.Duration, opts ...MirrorOption) *MirrorScraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &MirrorScraper{
		hosts:     hosts,
		client:    &http.Client{Timeout: timeout},
		userAgent: "Mozilla/5.0 (compatible; AuralyticsBot/1.0)",
		maxPages:  3,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enabled reports whether any host is configured.
func (s *MirrorScraper) Enabled() bool { return s != nil && len(s.hosts) > 0 }

// Scrape tries each host until one yields at least one item. The error joins
// every host failure and is only returned when no host produced anything.
func (s *MirrorScraper) Scrape(ctx context.Context, handle string, limit int) (Page, error) {
	if handle == "" {
		return Page{}, errors.New("scraper: empty handle")
	}
	var errs []error
	for _, host := range s.hosts {
		page, err := s.scrapeHost(ctx, host, handle, limit)
		if err != nil {
			logging.Warn("mirror_failed", map[string]any{"host": host, "handle": handle, "error": err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", host, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(page.Items) > 0 {
			return page, nil
		}
		errs = append(errs, fmt.Errorf("%s: no timeline items", host))
	}
	if len(errs) == 0 {
		return Page{}, errors.New("scraper: no mirror hosts configured")
	}
	return Page{}, errors.Join(errs...)
}

func (s *MirrorScraper) scrapeHost(ctx context.Context, host, handle string, limit int) (Page, error) {
	page := Page{Host: host}
	base := strings.TrimRight(host, "/") + "/" + url.PathEscape(handle)
	next := base
	seen := map[string]bool{}
	for i := 0; i < s.maxPages && next != ""; i++ {
		doc, err := s.fetch(ctx, next)
		if err != nil {
			if len(page.Items) > 0 {
				break
			}
			return page, err
		}
		if page.Profile == nil {
			page.Profile = ParseProfileCard(doc)
		}
		for _, it := range ParseTimeline(doc) {
			key := it.ID
			if key == "" {
				key = it.Text
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			page.Items = append(page.Items, it)
		}
		if limit > 0 && len(page.Items) >= limit {
			page.Items = page.Items[:limit]
			break
		}
		next = nextCursorURL(doc, base)
	}
	return page, nil
}

func (s *MirrorScraper) fetch(ctx context.Context, u string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("mirror status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if len(body) < MinBodyBytes {
		return nil, fmt.Errorf("mirror body too short (%d bytes)", len(body))
	}
	return html.Parse(bytes.NewReader(body))
}

// nextCursorURL resolves the "load more" link, which carries a cursor query.
func nextCursorURL(doc *html.Node, base string) string {
	links := selShowMore.MatchAll(doc)
	for i := len(links) - 1; i >= 0; i-- {
		href := dom.GetAttribute(links[i], "href")
		if !strings.Contains(href, "cursor=") {
			continue
		}
		b, err := url.Parse(base)
		if err != nil {
			return ""
		}
		ref, err := url.Parse(href)
		if err != nil {
			return ""
		}
		return b.ResolveReference(ref).String()
	}
	return ""
}

// ParseTimeline extracts every timeline item of a parsed mirror page.
// Entries without text are skipped.
func ParseTimeline(doc *html.Node) []Item {
	var out []Item
	for _, n := range selItem.MatchAll(doc) {
		if strings.Contains(dom.ClassName(n), "show-more") {
			continue
		}
		it := parseItem(n)
		if it.Text == "" {
			continue
		}
		out = append(out, it)
	}
	return out
}

func parseItem(n *html.Node) Item {
	var it Item
	for _, a := range selLink.MatchAll(n) {
		if m := statusID.FindStringSubmatch(dom.GetAttribute(a, "href")); m != nil {
			it.ID = m[1]
			break
		}
	}
	content := selContent.MatchFirst(n)
	if content == nil {
		content = selContentAlt.MatchFirst(n)
	}
	if content != nil {
		it.Text = util.NormalizeLines(textWithBreaks(content))
	}
	if d := selDate.MatchFirst(n); d != nil {
		it.Timestamp = strings.TrimSpace(dom.GetAttribute(d, "title"))
	}
	it.IsReply = selReplying.MatchFirst(n) != nil
	it.IsRetweet = selRetweet.MatchFirst(n) != nil
	it.IsQuote = selQuote.MatchFirst(n) != nil
	for _, st := range selStat.MatchAll(n) {
		icon := iconClass(st)
		val := strings.TrimSpace(dom.TextContent(st))
		switch {
		case strings.Contains(icon, "icon-comment"):
			it.Replies = val
		case strings.Contains(icon, "icon-retweet"):
			it.Retweets = val
		case strings.Contains(icon, "icon-quote"):
			it.Quotes = val
		case strings.Contains(icon, "icon-heart"):
			it.Likes = val
		}
	}
	return it
}

// iconClass returns the class of the first icon-* element inside a stat.
func iconClass(n *html.Node) string {
	for _, el := range dom.QuerySelectorAll(n, "[class*='icon-']") {
		for _, c := range strings.Fields(dom.ClassName(el)) {
			if strings.HasPrefix(c, "icon-") && c != "icon-container" {
				return c
			}
		}
	}
	return ""
}

// textWithBreaks is textContent with <br> rendered as a newline.
// html.Parse has already decoded entities.
func textWithBreaks(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if dom.TagName(n) == "br" {
				b.WriteByte('\n')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// ParseProfileCard reads the account header, or nil when the page has none.
func ParseProfileCard(doc *html.Node) *ProfileCard {
	card := selCard.MatchFirst(doc)
	if card == nil {
		return nil
	}
	text := func(sel string) string {
		if n := dom.QuerySelector(card, sel); n != nil {
			return util.NormalizeWhitespace(dom.TextContent(n))
		}
		return ""
	}
	attr := func(sel, name string) string {
		if n := dom.QuerySelector(card, sel); n != nil {
			return strings.TrimSpace(dom.GetAttribute(n, name))
		}
		return ""
	}
	pc := &ProfileCard{
		FullName:  text(".profile-card-fullname"),
		Username:  strings.TrimPrefix(text(".profile-card-username"), "@"),
		Bio:       text(".profile-bio"),
		Verified:  dom.QuerySelector(card, ".verified-icon") != nil,
		Tweets:    text(".posts .profile-stat-num"),
		Following: text(".following .profile-stat-num"),
		Followers: text(".followers .profile-stat-num"),
		Likes:     text(".likes .profile-stat-num"),
		JoinDate:  attr(".profile-joindate span[title]", "title"),
		Location:  text(".profile-location"),
		Website:   attr(".profile-website a", "href"),
		Avatar:    attr("a.profile-card-avatar", "href"),
	}
	if pc.Tweets == "" {
		pc.Tweets = text(".tweets .profile-stat-num")
	}
	return pc
}
