package util

// buildVersion is overridable at link time via -ldflags.
var buildVersion = "0.1.0"

// Version returns the build version string.
func Version() string {
	return buildVersion
}
