package cmd

import (
	"github.com/spf13/cobra"
)

// CommandContext holds the global flags shared by every command.
type CommandContext struct {
	// Output control
	Format  string
	NoColor bool

	// Configuration overrides
	ConfigPath  string
	APIURL      string
	LogLevel    string
	MetricsFile string
}

// NewCommandContext extracts the persistent flags from cmd:
//
//	func runCommand(cmd *cobra.Command, args []string) error {
//		ctx, err := NewCommandContext(cmd)
//		if err != nil {
//			return err
//		}
//		// Use ctx.Format, ctx.APIURL, etc.
//	}
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()

	format, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}

	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return nil, err
	}

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	apiURL, err := flags.GetString("api-url")
	if err != nil {
		return nil, err
	}

	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return nil, err
	}

	metricsFile, err := flags.GetString("metrics-file")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Format:      format,
		NoColor:     noColor,
		ConfigPath:  configPath,
		APIURL:      apiURL,
		LogLevel:    logLevel,
		MetricsFile: metricsFile,
	}, nil
}
