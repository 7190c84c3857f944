// Package common contains shared constants and sentinel errors used across
// service components.
package common

// Verification code purposes accepted by the code store.
const (
	CodePurposeLogin  = "login"
	CodePurposeSignup = "signup"
)

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"
