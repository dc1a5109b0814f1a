package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultBrowserUserAgent is a realistic mobile Chrome user agent.
const DefaultBrowserUserAgent = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"

// scrollRounds is how many times the profile page is scrolled before extraction.
const scrollRounds = 3

// BrowserResult is the raw output of one headless page load.
type BrowserResult struct {
	Records  []map[string]any
	Verified bool
}

// BrowserScraper loads the mobile profile page in headless Chrome and reads
// post anchors out of the rendered DOM.
type BrowserScraper struct {
	baseURL  string
	headless bool
	timeout  time.Duration
}

func NewBrowserScraper(baseURL string, headless bool, timeout time.Duration) *BrowserScraper {
	if baseURL == "" {
		baseURL = "https://mobile.twitter.com"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BrowserScraper{baseURL: strings.TrimRight(baseURL, "/"), headless: headless, timeout: timeout}
}

// BrowserOptions returns chromedp allocator options that hide the automation flag.
func BrowserOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(DefaultBrowserUserAgent),
		chromedp.WindowSize(412, 915),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	return opts
}

// extractJS returns one record per distinct /status/ anchor plus the verified flag.
const extractJS = `
(function(limit) {
	const out = [];
	const seen = new Set();
	document.querySelectorAll('a[href*="/status/"]').forEach(a => {
		if (out.length >= limit) return;
		const m = (a.getAttribute('href') || '').match(/status\/(\d+)/);
		if (!m || seen.has(m[1])) return;
		seen.add(m[1]);
		const box = a.closest('article') || a.closest('div');
		const textEl = box ? box.querySelector('[data-testid="tweetText"]') : null;
		const text = ((textEl || box || a).innerText || '').trim();
		if (!text) return;
		const timeEl = box ? box.querySelector('time') : null;
		const metric = id => {
			const el = box ? box.querySelector('[data-testid="' + id + '"]') : null;
			if (!el) return '0';
			const label = el.getAttribute('aria-label') || el.textContent || '';
			const mm = label.match(/([\d,.]+[KkMmBb]?)/);
			return mm ? mm[1] : '0';
		};
		out.push({
			id: m[1],
			text: text,
			created_at: timeEl ? timeEl.getAttribute('datetime') : '',
			like_count: metric('like'),
			retweet_count: metric('retweet'),
			reply_count: metric('reply'),
			is_retweet: !!(box && box.querySelector('[data-testid="socialContext"]')),
		});
	});
	const verified = !!document.querySelector('[data-testid="icon-verified"], svg[aria-label="Verified account"]');
	return {records: out, verified: verified};
})(%d)
`

// Scrape renders the profile page of handle and returns up to limit raw records.
func (b *BrowserScraper) Scrape(ctx context.Context, handle string, limit int) (BrowserResult, error) {
	var res BrowserResult
	if handle == "" {
		return res, errors.New("browser: empty handle")
	}
	if limit <= 0 {
		limit = 20
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, BrowserOptions(b.headless)...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, b.timeout)
	defer timeoutCancel()

	target := b.baseURL + "/" + url.PathEscape(handle)
	actions := []chromedp.Action{
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2 * time.Second),
	}
	for i := 0; i < scrollRounds; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight * 2)`, nil),
			chromedp.Sleep(time.Duration(700+i*200)*time.Millisecond),
		)
	}
	var raw struct {
		Records  []map[string]any `json:"records"`
		Verified bool             `json:"verified"`
	}
	actions = append(actions, chromedp.Evaluate(fmt.Sprintf(extractJS, limit), &raw))
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return res, fmt.Errorf("browser scrape %s: %w", handle, err)
	}
	res.Records = raw.Records
	res.Verified = raw.Verified
	return res, nil
}
