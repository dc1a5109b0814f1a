package normalize

import (
	"strings"

	"auralytics/internal/model"
	"auralytics/internal/scraper"
	"auralytics/internal/util"
	"auralytics/internal/xclient"
)

// ProfileFromV2 maps a v2 user object. The API always reports counts, so they are set.
func ProfileFromV2(u xclient.User) *model.Profile {
	p := &model.Profile{
		ID:             u.ID,
		Username:       u.Username,
		Name:           optStr(u.Name),
		Bio:            optStr(u.Description),
		IsVerified:     model.Ptr(u.Verified),
		FollowersCount: model.Ptr(nonNeg(u.PublicMetrics.FollowersCount)),
		FollowingCount: model.Ptr(nonNeg(u.PublicMetrics.FollowingCount)),
		TweetCount:     model.Ptr(nonNeg(u.PublicMetrics.TweetCount)),
		ListedCount:    model.Ptr(nonNeg(u.PublicMetrics.ListedCount)),
		ProfileImage:   optStr(u.ProfileImageURL),
		Location:       optStr(u.Location),
		Website:        optStr(u.URL),
		JoinDate:       optStr(Timestamp(u.CreatedAt)),
	}
	return p
}

// ProfileFromV1 maps the user object embedded in a v1.1 status.
// A zero user (no screen name or id) yields nil.
func ProfileFromV1(u xclient.V1User) *model.Profile {
	if u.IDStr == "" && u.ScreenName == "" {
		return nil
	}
	return &model.Profile{
		ID:             u.IDStr,
		Username:       u.ScreenName,
		Name:           optStr(u.Name),
		Bio:            optStr(u.Description),
		IsVerified:     model.Ptr(u.Verified),
		FollowersCount: model.Ptr(nonNeg(u.FollowersCount)),
		FollowingCount: model.Ptr(nonNeg(u.FriendsCount)),
		TweetCount:     model.Ptr(nonNeg(u.StatusesCount)),
		ListedCount:    model.Ptr(nonNeg(u.ListedCount)),
		ProfileImage:   optStr(u.ProfileImageURLHTTPS),
		Location:       optStr(u.Location),
		Website:        optStr(u.URL),
		JoinDate:       optStr(Timestamp(u.CreatedAt)),
	}
}

// ProfileFromCard maps a mirror profile card. Counts that do not parse stay unknown.
func ProfileFromCard(pc *scraper.ProfileCard) *model.Profile {
	if pc == nil {
		return nil
	}
	p := &model.Profile{
		Username:       pc.Username,
		Name:           optStr(pc.FullName),
		Bio:            optStr(pc.Bio),
		IsVerified:     model.Ptr(pc.Verified),
		FollowersCount: optCount(pc.Followers),
		FollowingCount: optCount(pc.Following),
		TweetCount:     optCount(pc.Tweets),
		ProfileImage:   optStr(pc.Avatar),
		Location:       optStr(pc.Location),
		Website:        optStr(pc.Website),
		JoinDate:       optStr(Timestamp(pc.JoinDate)),
	}
	return p
}

func optStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optCount(s string) *int {
	n, ok := util.ParseCount(s)
	if !ok {
		return nil
	}
	return &n
}
