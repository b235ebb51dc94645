package http

import (
	"encoding/base64"
	"net/http"
)

// AuthConfig decorates outgoing requests with credentials.
type AuthConfig interface {
	Apply(req *http.Request)
}

// NoAuth leaves requests untouched.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) {}

// BasicAuth sends HTTP Basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Apply adds the Basic auth header.
func (a BasicAuth) Apply(req *http.Request) {
	if a.Username == "" && a.Password == "" {
		return
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	req.Header.Set("Authorization", "Basic "+credentials)
}

// BearerToken sends a static service token.
type BearerToken struct {
	Token string
}

// Apply adds the Bearer header.
func (a BearerToken) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// ResolveAuth prefers a bearer token, then basic credentials.
func ResolveAuth(token, username, password string) AuthConfig {
	switch {
	case token != "":
		return BearerToken{Token: token}
	case username != "" || password != "":
		return BasicAuth{Username: username, Password: password}
	default:
		return NoAuth{}
	}
}
