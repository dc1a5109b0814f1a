package server

import (
	"net/http"
	"strconv"
	"strings"

	"auralytics/internal/model"
)

// Identity headers set by the upstream auth proxy. The service trusts them.
const (
	HeaderUserID   = "X-Auth-User-Id"
	HeaderUsername = "X-Auth-Username"
	HeaderName     = "X-Auth-Name"
	HeaderEmail    = "X-Auth-Email"
	HeaderImage    = "X-Auth-Image"
	HeaderVerified = "X-Auth-Verified"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID   string
	Username string
	Name     string
	Email    string
	Image    string
	Verified *bool
}

func identityFrom(r *http.Request) (Identity, bool) {
	id := Identity{
		UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Username: strings.TrimSpace(r.Header.Get(HeaderUsername)),
		Name:     strings.TrimSpace(r.Header.Get(HeaderName)),
		Email:    strings.TrimSpace(r.Header.Get(HeaderEmail)),
		Image:    strings.TrimSpace(r.Header.Get(HeaderImage)),
	}
	if v, err := strconv.ParseBool(r.Header.Get(HeaderVerified)); err == nil {
		id.Verified = &v
	}
	return id, id.UserID != ""
}

// Profile holds only what the identity actually carries.
func (id Identity) Profile() *model.Profile {
	p := &model.Profile{IsVerified: id.Verified}
	if id.Name != "" {
		p.Name = model.Ptr(id.Name)
	}
	if id.Image != "" {
		p.ProfileImage = model.Ptr(id.Image)
	}
	return p
}
