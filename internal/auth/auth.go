// Package auth attaches the console session credentials to backend requests.
//
// The backend accepts the token either as a bearer Authorization header or as
// the authToken cookie, so every request carries both.
package auth

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// CookieName is the cookie the backend reads the session token from.
const CookieName = "authToken"

// CookieMaxAge is the lifetime of the mirrored cookie, in seconds.
const CookieMaxAge = 86400

// skipWarningHeader disables the tunnel interstitial some deployments sit behind.
const skipWarningHeader = "ngrok-skip-browser-warning"

// Options controls the HTTP client built by NewClient.
type Options struct {
	// Token is the session token. Empty means anonymous requests.
	Token string
	// Timeout is the whole-request timeout. Zero means none.
	Timeout time.Duration
	// Base is the underlying transport. Defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// NewClient returns an HTTP client that authenticates every request with the
// session token.
func NewClient(opts Options) *http.Client {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var rt http.RoundTripper = &headerTransport{token: opts.Token, base: base}
	if opts.Token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(Token(opts.Token)),
			Base:   rt,
		}
	}
	return &http.Client{Transport: rt, Timeout: opts.Timeout}
}

// Token wraps a raw session token as a bearer oauth2 token that never expires.
func Token(raw string) *oauth2.Token {
	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
}

// Cookie returns the mirrored session cookie for raw.
func Cookie(raw string) *http.Cookie {
	return &http.Cookie{
		Name:   CookieName,
		Value:  raw,
		Path:   "/",
		MaxAge: CookieMaxAge,
	}
}

// headerTransport adds the session cookie and the fixed headers.
type headerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set(skipWarningHeader, "true")
	if t.token != "" {
		if _, err := r.Cookie(CookieName); err != nil {
			r.AddCookie(Cookie(t.token))
		}
	}
	return t.base.RoundTrip(r)
}
