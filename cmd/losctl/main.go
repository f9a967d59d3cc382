package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/losctl/internal/cmd"
	"github.com/felixgeelhaar/losctl/internal/exitcode"
	"github.com/felixgeelhaar/losctl/internal/ux"
)

func main() {
	// Cancel in-flight requests on Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
			exitcode.Exit(exitcode.Interrupted)
		}

		ux.RenderError(os.Stderr, err, ux.NewStyles(os.Getenv("NO_COLOR") != ""))
		exitcode.ExitWithError(err)
	}
	exitcode.Exit(exitcode.Success)
}
