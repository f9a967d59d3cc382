package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/los"
	"github.com/felixgeelhaar/losctl/internal/tui"
)

func newCustomerCmd(state *rootState) *cobra.Command {
	customerCmd := &cobra.Command{
		Use:     "customer",
		Aliases: []string{"customers"},
		Short:   "Manage loan customers",
		Long: `List, inspect, create, update and delete customers. All subcommands
require a session (see 'losctl auth login').

Examples:
  losctl customer list --search smith
  losctl customer get 42
  losctl customer create --file customer.yaml
  losctl customer update 42 --phone "+1 555 0100"`,
	}

	customerCmd.AddCommand(
		newCustomerListCmd(state),
		newCustomerGetCmd(state),
		newCustomerCreateCmd(state),
		newCustomerUpdateCmd(state),
		newCustomerDeleteCmd(state),
	)
	return customerCmd
}

func newCustomerListCmd(state *rootState) *cobra.Command {
	var opts los.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List customers",
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

			page, err := a.los.ListCustomers(ctx, opts)
			if err != nil {
				return err
			}
			return a.print(customerPage(*page))
		},
	}

	addPageFlags(cmd.Flags(), &opts)
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "filter by name, email or national ID")
	return cmd
}

func newCustomerGetCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a customer",
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

			c, err := a.los.GetCustomer(ctx, los.ID(args[0]))
			if err != nil {
				return err
			}
			return a.print(customerView(*c))
		},
	}
}

func newCustomerCreateCmd(state *rootState) *cobra.Command {
	var (
		in   los.CustomerInput
		file string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a customer",
		Long: `Create a customer from flags or from a YAML/JSON file. Flags override values
read from the file.

Example file:
  fullName: Jane Smith
  email: jane@example.com
  phone: "+1 555 0100"
  nationalId: "123456789"
  employmentStatus: EMPLOYED
  monthlyIncome: 5200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			input := los.CustomerInput{}
			if file != "" {
				if err := readInputFile(cmd.InOrStdin(), file, &input); err != nil {
					return err
				}
			}
			mergeCustomerFlags(cmd.Flags(), &input, in)

			if err := input.Validate(); err != nil {
				return err
			}
			if err := a.requireSession(ctx); err != nil {
				return err
			}

			c, err := a.los.CreateCustomer(ctx, input)
			if err != nil {
				return err
			}
			if a.textOutput() {
				fmt.Fprintf(a.out, "%s Created customer %s (%s)\n", a.styles().Success.Render("✓"), c.FullName, c.ID)
				return nil
			}
			return a.print(customerView(*c))
		},
	}

	addCustomerFlags(cmd.Flags(), &in, &file)
	return cmd
}

func newCustomerUpdateCmd(state *rootState) *cobra.Command {
	var (
		in   los.CustomerInput
		file string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a customer",
		Long: `Update a customer. The current record is fetched first and only the fields
given by flags (or present in --file) are changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.requireSession(ctx); err != nil {
				return err
			}

			id := los.ID(args[0])
			current, err := a.los.GetCustomer(ctx, id)
			if err != nil {
				return err
			}

			input := customerInputFrom(current)
			if file != "" {
				if err := readInputFile(cmd.InOrStdin(), file, &input); err != nil {
					return err
				}
			}
			mergeCustomerFlags(cmd.Flags(), &input, in)

			c, err := a.los.UpdateCustomer(ctx, id, input)
			if err != nil {
				return err
			}
			if a.textOutput() {
				fmt.Fprintf(a.out, "%s Updated customer %s (%s)\n", a.styles().Success.Render("✓"), c.FullName, c.ID)
				return nil
			}
			return a.print(customerView(*c))
		},
	}

	addCustomerFlags(cmd.Flags(), &in, &file)
	return cmd
}

func newCustomerDeleteCmd(state *rootState) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a customer",
		Long: `Delete a customer. Asks for confirmation unless --yes is given; without a
terminal --yes is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := los.ID(args[0])

			if !yes {
				ok, err := tui.Confirm(ctx, fmt.Sprintf("Delete customer %s?", id), false)
				if err != nil {
					return err
				}
				if !ok {
					e := errors.New(errors.KindAborted, errors.ErrCodeAborted, "delete cancelled")
					e.Suggestions = []string{"Pass --yes to delete without confirmation"}
					return e
				}
			}

			if err := a.requireSession(ctx); err != nil {
				return err
			}
			if err := a.los.DeleteCustomer(ctx, id); err != nil {
				return err
			}
			if a.textOutput() {
				fmt.Fprintf(a.out, "%s Deleted customer %s\n", a.styles().Success.Render("✓"), id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func addPageFlags(fs *pflag.FlagSet, opts *los.ListOptions) {
	fs.IntVar(&opts.Page, "page", 0, "page number, starting at 0")
	fs.IntVar(&opts.Size, "size", 20, "page size (max 200)")
}

func addCustomerFlags(fs *pflag.FlagSet, in *los.CustomerInput, file *string) {
	fs.StringVarP(file, "file", "f", "", "read the customer from a YAML or JSON file ('-' for stdin)")
	fs.StringVar(&in.FullName, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "email address")
	fs.StringVar(&in.Phone, "phone", "", "phone number")
	fs.StringVar(&in.NationalID, "national-id", "", "national ID number")
	fs.StringVar(&in.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	fs.StringVar(&in.Address, "address", "", "postal address")
	fs.StringVar(&in.EmploymentStatus, "employment", "", "EMPLOYED, SELF_EMPLOYED, UNEMPLOYED, RETIRED or STUDENT")
	fs.Float64Var(&in.MonthlyIncome, "income", 0, "monthly income")
}

// mergeCustomerFlags copies the flags the user actually set onto dst.
func mergeCustomerFlags(fs *pflag.FlagSet, dst *los.CustomerInput, src los.CustomerInput) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("name", func() { dst.FullName = src.FullName })
	set("email", func() { dst.Email = src.Email })
	set("phone", func() { dst.Phone = src.Phone })
	set("national-id", func() { dst.NationalID = src.NationalID })
	set("dob", func() { dst.DateOfBirth = src.DateOfBirth })
	set("address", func() { dst.Address = src.Address })
	set("employment", func() { dst.EmploymentStatus = src.EmploymentStatus })
	set("income", func() { dst.MonthlyIncome = src.MonthlyIncome })
}

func customerInputFrom(c *los.Customer) los.CustomerInput {
	return los.CustomerInput{
		FullName:         c.FullName,
		Email:            c.Email,
		Phone:            c.Phone,
		NationalID:       c.NationalID,
		DateOfBirth:      c.DateOfBirth,
		Address:          c.Address,
		EmploymentStatus: c.EmploymentStatus,
		MonthlyIncome:    c.MonthlyIncome,
	}
}

// readInputFile decodes a YAML (or JSON) document from path into out. "-"
// reads stdin.
func readInputFile(stdin io.Reader, path string, out any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		e := errors.Wrap(errors.KindValidation, errors.ErrCodeInvalidPayload, "failed to read "+path, err)
		e.Suggestions = []string{"Check that the file exists and is readable"}
		return e
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrap(errors.KindValidation, errors.ErrCodeInvalidPayload, "failed to parse "+path, err)
	}
	return nil
}
