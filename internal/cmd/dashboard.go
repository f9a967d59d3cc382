package cmd

import (
	"github.com/spf13/cobra"
)

func newDashboardCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the LOS dashboard summary",
		Long: `Show headline counts: customers, applications by status and the total
requested amount.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.requireSession(ctx); err != nil {
				return err
			}

			summary, err := a.los.DashboardSummary(ctx)
			if err != nil {
				return err
			}
			return a.print(dashboardView(*summary))
		},
	}
}
