// Package version exposes the build version of llm-fuzz.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"
