// Command techintel compares technology analytics from the terminal and
// runs the API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/TechIntel/internal/app"
	"github.com/turtacn/TechIntel/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, app.CommandDependencies())
	stop()
	if err != nil {
		os.Exit(1)
	}
}
