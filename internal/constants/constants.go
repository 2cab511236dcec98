package constants

// Package constants provides constants for the CEL forward-auth gateway.

const (
	ServiceName = "celgate"

	DefaultListenAddress  = ":9000"
	DefaultRefreshSeconds = 60
	DefaultTimeoutSeconds = 15
)
