package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/losctl/internal/auth"
	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/tui"
)

func newAuthCmd(state *rootState) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to and out of the LOS",
		Long: `Manage the LOS session.

Subcommands:
  login    Sign in with username and password
  logout   Sign out and remove stored credentials
  status   Show the local session state
  refresh  Exchange the refresh token for a new access token
  whoami   Show the signed-in user as the backend sees it

Examples:
  losctl auth login --username loan.officer
  losctl auth status
  losctl auth whoami --has-role ADMIN
  losctl auth logout`,
	}

	authCmd.AddCommand(
		newAuthLoginCmd(state),
		newAuthLogoutCmd(state),
		newAuthStatusCmd(state),
		newAuthRefreshCmd(state),
		newAuthWhoamiCmd(state),
	)
	return authCmd
}

func newAuthLoginCmd(state *rootState) *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username and password",
		Long: `Sign in to the LOS. Missing credentials are prompted for when running in a
terminal. The password is never echoed.

Examples:
  losctl auth login
  losctl auth login --username loan.officer
  echo "$LOS_PASSWORD" | losctl auth login --username loan.officer --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if passwordStdin {
				if password, err = readPassword(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			in, err := tui.PromptLogin(ctx, tui.LoginInput{Username: username, Password: password})
			if err != nil {
				return err
			}

			user, err := a.auth.Login(ctx, auth.Credentials{Username: in.Username, Password: in.Password})
			if err != nil {
				return err
			}

			if a.textOutput() {
				fmt.Fprintf(a.out, "%s Logged in as %s (%s)\n",
					a.styles().Success.Render("✓"), user.Name, user.Username)
				return nil
			}
			return a.print(userView(*user))
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "LOS username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "LOS password (prefer the prompt or --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(errors.KindInternal, errors.ErrCodeTerminal, "failed to read password from stdin", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newAuthLogoutCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove stored credentials",
		Long: `Notify the backend and remove the stored session. Local credentials are
removed even when the backend cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			restored, err := a.auth.Restore(ctx)
			if err != nil {
				a.logger.WithError(err).Warn("could not read stored session")
			}
			a.auth.Logout(ctx)

			if !a.textOutput() {
				return a.print(a.auth.Snapshot())
			}
			if !restored {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}
			fmt.Fprintf(a.out, "%s Logged out\n", a.styles().Success.Render("✓"))
			return nil
		},
	}
}

func newAuthStatusCmd(state *rootState) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local session state",
		Long: `Show who is signed in and when the access token expires. With --verify the
stored session is also checked against the backend; a rejected session is
signed out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := state.appFor(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var verifyErr error
			if verify {
				verifyErr = a.auth.Initialize(ctx)
			} else if _, err := a.auth.Restore(ctx); err != nil {
				return err
			}

			view := newSessionView(a.auth.Snapshot(), a.cfg.Storage.Backend)
			if exp, ok := a.auth.TokenExpiry(); ok {
				view.ExpiresAt = &exp
			}
			if verifyErr != nil {
				view.Verification = errors.Message(verifyErr)
			}
			if err := a.print(view); err != nil {
				return err
			}
			if errors.IsAborted(verifyErr) {
				return verifyErr
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "validate the session against the backend")
	return cmd
}

func newAuthRefreshCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		Long: `Refresh the access token now. If the refresh token is missing or rejected
the session is signed out.`,
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
			if _, err := a.auth.RefreshToken(ctx); err != nil {
				return err
			}

			view := newSessionView(a.auth.Snapshot(), a.cfg.Storage.Backend)
			if exp, ok := a.auth.TokenExpiry(); ok {
				view.ExpiresAt = &exp
			}
			if a.textOutput() {
				msg := "Token refreshed"
				if view.ExpiresAt != nil {
					msg += ", valid until " + view.ExpiresAt.Local().Format(time.RFC1123)
				}
				fmt.Fprintf(a.out, "%s %s\n", a.styles().Success.Render("✓"), msg)
				return nil
			}
			return a.print(view)
		},
	}
}

func newAuthWhoamiCmd(state *rootState) *cobra.Command {
	var (
		hasRole       []string
		hasPermission []string
	)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Long: `Fetch the signed-in user from the backend. --has-role and --has-permission
turn the command into a check that fails with an authorization error when the
user lacks any of them.

Examples:
  losctl auth whoami
  losctl auth whoami --has-role ADMIN --has-permission LOAN_APPROVE`,
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
			if err := a.auth.Initialize(ctx); err != nil {
				return err
			}

			var missing []string
			for _, r := range hasRole {
				if !a.auth.HasRole(r) {
					missing = append(missing, "role "+r)
				}
			}
			for _, p := range hasPermission {
				if !a.auth.HasPermission(p) {
					missing = append(missing, "permission "+p)
				}
			}

			if err := a.print(userView(*a.auth.Snapshot().User)); err != nil {
				return err
			}
			if len(missing) > 0 {
				return errors.New(errors.KindForbidden, errors.ErrCodeForbidden,
					"missing "+strings.Join(missing, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&hasRole, "has-role", nil, "require these roles")
	cmd.Flags().StringSliceVar(&hasPermission, "has-permission", nil, "require these permissions")
	return cmd
}
