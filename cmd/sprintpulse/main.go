package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sprintpulse/sprintpulse/internal/cli"
	"github.com/sprintpulse/sprintpulse/internal/clierr"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "sprintpulse:", err)
		os.Exit(clierr.ExitCodeOf(err))
	}
}
