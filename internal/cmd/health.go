package cmd

import (
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/health"
)

// expiryWarning is how close to expiry a token must be before the session
// check reports degraded.
const expiryWarning = 5 * time.Minute

func newHealthCmd(state *rootState) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:     "health",
		Aliases: []string{"doctor"},
		Short:   "Check the backend, credential store and session",
		Long: `Run health checks in parallel:

  los-backend       the backend's /health endpoint
  credential-store  the configured session storage backend
  session           whether a session exists and how soon it expires

Exits non-zero when any check is unhealthy. Degraded checks (for example not
being logged in) are reported but do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if _, err := a.auth.Restore(ctx); err != nil {
				a.logger.WithError(err).Debug("stored session unreadable")
			}

			m := health.NewManager().WithTimeout(timeout)
			m.AddChecker(health.NewBackendChecker(a.client))
			m.AddChecker(health.NewStorageChecker(a.cfg.Storage.Backend, a.store))
			m.AddChecker(health.NewSessionChecker(a.auth, expiryWarning))

			report := m.Run(ctx)
			if err := a.print(healthView(*report)); err != nil {
				return err
			}

			if report.Status != health.StatusUnhealthy {
				return nil
			}
			var failed []string
			for name, r := range report.Checks {
				if r.Status == health.StatusUnhealthy {
					failed = append(failed, name)
				}
			}
			slices.Sort(failed)
			return errors.New(errors.KindServer, errors.ErrCodeServer,
				"unhealthy: "+strings.Join(failed, ", "))
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", health.DefaultTimeout, "timeout per check (0 uses the default)")
	return cmd
}
