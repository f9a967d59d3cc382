package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/losctl/internal/config"
	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/ux"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage losctl configuration",
		Long: `View and modify the losctl configuration file.

The configuration lives in ~/.losctl/config.yaml (or $LOSCTL_CONFIG) and holds
the backend URL, the credential storage backend, logging and output defaults.
Secrets such as the storage passphrase, the Redis password and the Vault token
are read from the environment only and never written to the file.

Examples:
  losctl config view
  losctl config get api.base_url
  losctl config set api.base_url https://los.example.com/api
  losctl config set storage.backend redis
  losctl config path`,
	}

	configCmd.AddCommand(
		newConfigViewCmd(),
		newConfigEditCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigPathCmd(),
	)
	return configCmd
}

func newConfigViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		Long: `Show the configuration after environment variables and command-line flags
have been applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			if cfg.Output.Format == ux.FormatJSON || cfg.Output.Format == ux.FormatYAML {
				f, err := ux.NewFormatter(cfg.Output.Format, &ux.FormatterOptions{
					Writer:  cmd.OutOrStdout(),
					NoColor: cfg.Output.NoColor,
				})
				if err != nil {
					return err
				}
				return f.Format(cfg)
			}

			path, err := configPath(flags)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return errors.NewConfigError("failed to marshal config", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration file: %s\n\n", path)
			fmt.Fprint(out, string(data))
			return nil
		},
	}
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the configuration file in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path, err := configPath(flags)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := config.Save(config.Default(), path); err != nil {
					return err
				}
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			editorCmd := exec.CommandContext(cmd.Context(), editor, path)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = cmd.OutOrStdout()
			editorCmd.Stderr = cmd.ErrOrStderr()
			if err := editorCmd.Run(); err != nil {
				return errors.NewConfigError("failed to run editor "+editor, err)
			}

			if _, err := config.Load(path); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: the configuration is invalid; fix it before running other commands.")
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration updated")
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value",
		Long: `Change one value and write the file. The result is validated before it is
saved, so an invalid value leaves the file untouched.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path, err := configPath(flags)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path, err := configPath(flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func configPath(flags *CommandContext) (string, error) {
	if flags.ConfigPath != "" {
		return flags.ConfigPath, nil
	}
	return config.Path()
}
