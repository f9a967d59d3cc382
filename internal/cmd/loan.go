package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/losctl/internal/los"
)

func newLoanCmd(state *rootState) *cobra.Command {
	loanCmd := &cobra.Command{
		Use:     "loan",
		Aliases: []string{"loans", "application"},
		Short:   "Manage loan applications",
		Long: `List, inspect, create and submit loan applications. New applications are
drafts until submitted.

Examples:
  losctl loan list --status SUBMITTED
  losctl loan create --customer 42 --type PERSONAL --amount 15000 --term 36
  losctl loan submit 1001`,
	}

	loanCmd.AddCommand(
		newLoanListCmd(state),
		newLoanGetCmd(state),
		newLoanCreateCmd(state),
		newLoanSubmitCmd(state),
	)
	return loanCmd
}

func newLoanListCmd(state *rootState) *cobra.Command {
	var opts los.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loan applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.requireSession(ctx); err != nil {
				return err
			}

			opts.Status = strings.ToUpper(opts.Status)
			page, err := a.los.ListLoanApplications(ctx, opts)
			if err != nil {
				return err
			}
			return a.print(loanPage(*page))
		},
	}

	addPageFlags(cmd.Flags(), &opts)
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "filter by application number or customer")
	cmd.Flags().StringVar(&opts.Status, "status", "", "DRAFT, SUBMITTED, UNDER_REVIEW, APPROVED, REJECTED or CANCELLED")
	return cmd
}

func newLoanGetCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a loan application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.requireSession(ctx); err != nil {
				return err
			}

			l, err := a.los.GetLoanApplication(ctx, los.ID(args[0]))
			if err != nil {
				return err
			}
			return a.print(loanView(*l))
		},
	}
}

func newLoanCreateCmd(state *rootState) *cobra.Command {
	var (
		in         los.LoanApplicationInput
		customerID string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft loan application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			input := los.LoanApplicationInput{}
			if file != "" {
				if err := readInputFile(cmd.InOrStdin(), file, &input); err != nil {
					return err
				}
			}
			fs := cmd.Flags()
			if fs.Changed("customer") {
				input.CustomerID = los.ID(customerID)
			}
			if fs.Changed("type") {
				input.LoanType = strings.ToUpper(in.LoanType)
			}
			if fs.Changed("amount") {
				input.Amount = in.Amount
			}
			if fs.Changed("term") {
				input.TermMonths = in.TermMonths
			}
			if fs.Changed("purpose") {
				input.Purpose = in.Purpose
			}

			if err := input.Validate(); err != nil {
				return err
			}
			if err := a.requireSession(ctx); err != nil {
				return err
			}

			l, err := a.los.CreateLoanApplication(ctx, input)
			if err != nil {
				return err
			}
			if a.textOutput() {
				fmt.Fprintf(a.out, "%s Created draft application %s\n", a.styles().Success.Render("✓"), l.ID)
				fmt.Fprintf(a.out, "  Submit it with: losctl loan submit %s\n", l.ID)
				return nil
			}
			return a.print(loanView(*l))
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&file, "file", "f", "", "read the application from a YAML or JSON file ('-' for stdin)")
	fs.StringVar(&customerID, "customer", "", "customer ID")
	fs.StringVar(&in.LoanType, "type", "", "PERSONAL, MORTGAGE, AUTO, BUSINESS or EDUCATION")
	fs.Float64Var(&in.Amount, "amount", 0, "requested amount")
	fs.IntVar(&in.TermMonths, "term", 0, "term in months")
	fs.StringVar(&in.Purpose, "purpose", "", "purpose of the loan")
	return cmd
}

func newLoanSubmitCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a draft application for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.requireSession(ctx); err != nil {
				return err
			}

			l, err := a.los.SubmitLoanApplication(ctx, los.ID(args[0]))
			if err != nil {
				return err
			}
			if a.textOutput() {
				fmt.Fprintf(a.out, "%s Application %s is %s\n", a.styles().Success.Render("✓"), l.ID, l.Status)
				return nil
			}
			return a.print(loanView(*l))
		},
	}
}
