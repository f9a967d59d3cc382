package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/losctl/internal/metrics"
	"github.com/felixgeelhaar/losctl/internal/version"
)

func newRootCmd() (*cobra.Command, *rootState) {
	state := &rootState{}

	rootCmd := &cobra.Command{
		Use:   "losctl",
		Short: "Command-line client for the Loan Origination System",
		Long: `losctl signs loan officers in to the Loan Origination System (LOS) and
works with customers, loan applications and the dashboard from the terminal.

The session (access token, refresh token and user) is kept in the configured
credential store and refreshed automatically when the backend rejects an
expired token.`,
		Version:       version.GetInfo().Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.losctl/config.yaml)")
	flags.String("api-url", "", "LOS backend base URL (overrides api.base_url)")
	flags.StringP("format", "o", "", "output format: text, json or yaml")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("metrics-file", "", "write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		newAuthCmd(state),
		newCustomerCmd(state),
		newLoanCmd(state),
		newDashboardCmd(state),
		newHealthCmd(state),
		newConfigCmd(),
		newCompletionCmd(),
		newVersionCmd(),
	)

	return rootCmd, state
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, records the command metric
// and writes the metrics file when --metrics-file is set.
func ExecuteContext(ctx context.Context) error {
	return execute(ctx, nil)
}

// execute is ExecuteContext with an optional hook to configure the root
// command (arguments, output) before it runs.
func execute(ctx context.Context, configure func(*cobra.Command)) error {
	rootCmd, state := newRootCmd()
	if configure != nil {
		configure(rootCmd)
	}

	start := time.Now()
	cmd, err := rootCmd.ExecuteContextC(ctx)

	if a := state.app; a != nil {
		a.metrics.ObserveCommand(cmd.CommandPath(), err == nil, time.Since(start))
		if werr := metrics.WriteTextfile(a.flags.MetricsFile, a.registry); werr != nil {
			a.logger.WithError(werr).Warn("failed to write metrics file")
		}
	}
	return err
}
