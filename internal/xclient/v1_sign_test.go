package xclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuth1SigningAddsHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "), auth)
		assert.Contains(t, auth, `oauth_consumer_key="ck"`)
		assert.Contains(t, auth, `oauth_signature=`)
		assert.Equal(t, "alice", r.URL.Query().Get("screen_name"))
		assert.Equal(t, "false", r.URL.Query().Get("include_rts"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()

	v1 := NewV1Client(newTestClient(ts), "ck", "cs", "at", "as")
	v1.BaseURL = ts.URL
	got, err := v1.GetUserTimeline(context.Background(), "alice", TimelineQuery{Max: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOAuth1SignatureIsDeterministic(t *testing.T) {
	v1 := NewV1Client(NewHTTPClient(""), "ck", "cs", "at", "as")
	v1.nowFn = func() time.Time { return time.Unix(1700000000, 0) }
	v1.nonceFn = func() string { return "nonce" }

	sign := func() string {
		req, _ := http.NewRequest(http.MethodGet, "https://api.twitter.com/1.1/statuses/user_timeline.json?screen_name=a", nil)
		v1.oauth1Sign(req, map[string]string{"screen_name": "a"})
		return req.Header.Get("Authorization")
	}
	assert.Equal(t, sign(), sign())
	assert.True(t, v1.Enabled())
	assert.False(t, NewV1Client(nil, "ck", "", "at", "as").Enabled())
}

func TestGetUserTimelinePagesWithMaxID(t *testing.T) {
	var maxIDs []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		maxIDs = append(maxIDs, r.URL.Query().Get("max_id"))
		if len(maxIDs) == 1 {
			_, _ = w.Write([]byte(`[{"id_str":"30","full_text":"a"},{"id_str":"20","full_text":"b"}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"id_str":"10","full_text":"c","user":{"screen_name":"alice","followers_count":7}}]`))
	}))
	defer ts.Close()

	v1 := NewV1Client(newTestClient(ts), "ck", "cs", "at", "as")
	v1.BaseURL = ts.URL
	got, err := v1.GetUserTimeline(context.Background(), "alice", TimelineQuery{Max: 3, IncludeRetweets: true})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"", "19"}, maxIDs)
	assert.Equal(t, 7, got[2].User.FollowersCount)
}
