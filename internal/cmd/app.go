package cmd

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/losctl/internal/api"
	"github.com/felixgeelhaar/losctl/internal/auth"
	"github.com/felixgeelhaar/losctl/internal/config"
	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/log"
	"github.com/felixgeelhaar/losctl/internal/los"
	"github.com/felixgeelhaar/losctl/internal/metrics"
	"github.com/felixgeelhaar/losctl/internal/storage"
	"github.com/felixgeelhaar/losctl/internal/ux"
	"github.com/felixgeelhaar/losctl/internal/version"
)

// app is everything a command needs, built once per invocation.
type app struct {
	flags    *CommandContext
	cfg      *config.Config
	out      io.Writer
	errOut   io.Writer
	logger   *log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	client   *api.Client
	store    storage.Store
	auth     *auth.Service
	los      *los.Client
}

// rootState caches the app across the single command that runs and lets
// ExecuteContext flush metrics afterwards.
type rootState struct {
	app *app
}

// loadConfig returns the config with flag overrides applied, without building any
// clients. Used by config and version commands.
func loadConfig(flags *CommandContext) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.APIURL != "" {
		cfg.API.BaseURL = flags.APIURL
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.Format != "" {
		cfg.Output.Format = flags.Format
	}
	if flags.NoColor {
		cfg.Output.NoColor = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// appFor builds the app for cmd on first use.
func (s *rootState) appFor(cmd *cobra.Command) (*app, error) {
	if s.app != nil {
		return s.app, nil
	}

	flags, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	log.SetDefaultLogger(logger)

	registry, m := metrics.NewRegistry()
	info := version.GetInfo()

	client, err := api.New(cfg.APIClientConfig(info.UserAgent()),
		api.WithLogger(logger),
		api.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}

	s.app = &app{
		flags:    flags,
		cfg:      cfg,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		logger:   logger,
		registry: registry,
		metrics:  m,
		client:   client,
		store:    store,
		auth:     auth.New(client, store, auth.WithLogger(logger), auth.WithMetrics(m)),
		los:      los.New(client),
	}
	return s.app, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.NewConfigError(err.Error(), nil)
	}
	format, err := log.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, errors.NewConfigError(err.Error(), nil)
	}

	lc := log.DefaultConfig()
	if level == log.LevelDebug {
		lc = log.DevelopmentConfig()
	}
	lc.Level = level
	lc.Format = format
	lc.Output = log.NewOutput(w)
	lc.ServiceVersion = version.Version
	return log.New(lc), nil
}

// requireSession restores the stored session or fails with a not-logged-in
// error.
func (a *app) requireSession(ctx context.Context) error {
	restored, err := a.auth.Restore(ctx)
	if err != nil {
		return err
	}
	if !restored {
		return errors.NewNoSessionError()
	}
	return nil
}

// print renders v in the configured output format.
func (a *app) print(v any) error {
	f, err := ux.NewFormatter(a.cfg.Output.Format, &ux.FormatterOptions{
		Writer:  a.out,
		NoColor: a.cfg.Output.NoColor,
	})
	if err != nil {
		return errors.NewValidationError(err.Error())
	}
	return f.Format(v)
}

// textOutput reports whether human-oriented notices should be printed.
func (a *app) textOutput() bool {
	return a.cfg.Output.Format == ux.FormatText || a.cfg.Output.Format == ""
}

func (a *app) styles() ux.Styles {
	return ux.NewStyles(a.cfg.Output.NoColor)
}
