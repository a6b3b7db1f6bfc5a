package main

// The doro tool is a command line client for a digital object
// repository, meant for scripting and for poking at a repository
// while developing against one.

import (
	"os"

	raven "github.com/getsentry/raven-go"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// raven is a no-op unless SENTRY_DSN is set in the environment
		raven.CaptureErrorAndWait(err, map[string]string{"tool": "doro"})
		logger.Error(err)
		os.Exit(1)
	}
}
