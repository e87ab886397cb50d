// Package main is the entry point for the seobridge command.
//
// seobridge runs SEO data API calls through the same validate, rate limit,
// cache and classify pipeline an agent-facing tool uses.
//
// Usage:
//
//	seobridge [command] [flags]
//
// Commands:
//
//	call <method> [params-json]   Call one API method
//	repl                          Run calls read line by line from stdin
//	config                        Show the effective configuration
//	fake-api                      Serve a scripted fake of the API
package main

import (
	"github.com/akshayaggarwal99/seobridge/internal/cli"

	// Register cache backends
	_ "github.com/akshayaggarwal99/seobridge/internal/cache/memory"
	_ "github.com/akshayaggarwal99/seobridge/internal/cache/redis"
)

// Version information (set via ldflags at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.RootCmd.Version = Version + " (" + GitCommit + ", built " + BuildDate + ")"
	cli.Execute()
}
