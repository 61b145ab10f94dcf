package models

import "time"

// AuthSession is the token pair produced by a code exchange or a refresh.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// LoginRedirect starts an authorization attempt: the caller stores State and sends the
// user agent to AuthRedirect.
type LoginRedirect struct {
	AuthRedirect string `json:"authRedirect"`
	State        string `json:"-"`
}
