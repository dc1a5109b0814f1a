package model

// Reference types carried by posts. Only used for inclusion filtering.
const (
	RefRepliedTo = "replied_to"
	RefRetweeted = "retweeted"
	RefQuoted    = "quoted"
)

// Reference points a post at the post it replies to, reshares or quotes.
// ID may be "unknown" when the source only exposes the marker.
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Metrics are the public engagement counters of a post. Unknown counts are 0.
type Metrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

// Post is the canonical record every fetch strategy is normalized into.
type Post struct {
	ID               string      `json:"id"`
	Text             string      `json:"text"`
	CreatedAt        string      `json:"created_at,omitempty"`
	PublicMetrics    Metrics     `json:"public_metrics"`
	ReferencedTweets []Reference `json:"referenced_tweets,omitempty"`

	// Source names the fetcher that produced the post. Never serialized.
	Source string `json:"-"`
}

func (p Post) hasRef(typ string) bool {
	for _, r := range p.ReferencedTweets {
		if r.Type == typ {
			return true
		}
	}
	return false
}

// IsReply reports whether the post replies to another post.
func (p Post) IsReply() bool { return p.hasRef(RefRepliedTo) }

// IsRetweet reports whether the post is a reshare.
func (p Post) IsRetweet() bool { return p.hasRef(RefRetweeted) }

// Profile is a snapshot of an account. A nil field means the value is unknown.
type Profile struct {
	ID             string  `json:"id,omitempty"`
	Username       string  `json:"username,omitempty"`
	Name           *string `json:"name,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	IsVerified     *bool   `json:"isVerified,omitempty"`
	FollowersCount *int    `json:"followersCount,omitempty"`
	FollowingCount *int    `json:"followingCount,omitempty"`
	TweetCount     *int    `json:"tweetCount,omitempty"`
	ListedCount    *int    `json:"listedCount,omitempty"`
	ProfileImage   *string `json:"profileImage,omitempty"`
	Location       *string `json:"location,omitempty"`
	Website        *string `json:"website,omitempty"`
	JoinDate       *string `json:"joinDate,omitempty"`
}

// Verified reports the verification flag, false when unknown.
func (p *Profile) Verified() bool {
	return p != nil && p.IsVerified != nil && *p.IsVerified
}

// Followers returns the follower count and whether it is known.
func (p *Profile) Followers() (int, bool) {
	if p == nil || p.FollowersCount == nil {
		return 0, false
	}
	return *p.FollowersCount, true
}

// Following returns the following count, 0 when unknown.
func (p *Profile) Following() int {
	if p == nil || p.FollowingCount == nil {
		return 0
	}
	return *p.FollowingCount
}

// Merge fills fields of p that are unknown from other. Known fields are kept.
func (p *Profile) Merge(other *Profile) {
	if p == nil || other == nil {
		return
	}
	if p.ID == "" {
		p.ID = other.ID
	}
	if p.Username == "" {
		p.Username = other.Username
	}
	mergeStr(&p.Name, other.Name)
	mergeStr(&p.Bio, other.Bio)
	mergeStr(&p.ProfileImage, other.ProfileImage)
	mergeStr(&p.Location, other.Location)
	mergeStr(&p.Website, other.Website)
	mergeStr(&p.JoinDate, other.JoinDate)
	mergeInt(&p.FollowersCount, other.FollowersCount)
	mergeInt(&p.FollowingCount, other.FollowingCount)
	mergeInt(&p.TweetCount, other.TweetCount)
	mergeInt(&p.ListedCount, other.ListedCount)
	if p.IsVerified == nil && other.IsVerified != nil {
		v := *other.IsVerified
		p.IsVerified = &v
	}
}

func mergeStr(dst **string, src *string) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

func mergeInt(dst **int, src *int) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
