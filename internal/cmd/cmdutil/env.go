// Package cmdutil holds the bootstrap shared by dtadmin subcommands: common
// flags, config and logger setup, the token store and the API client.
package cmdutil

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dtadmin/internal/adminapi"
	"dtadmin/internal/adminui"
	"dtadmin/internal/config"
	"dtadmin/internal/logging"
	isetup "dtadmin/internal/setup"
	"dtadmin/internal/version"
	"github.com/prometheus/client_golang/prometheus"
)

// Common are the flags every backend-facing subcommand accepts.
type Common struct {
	ConfigPath string
	Addr       string
	Insecure   bool
	LogLevel   string
}

// Register adds the common flags to fs.
func (c *Common) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config", config.DefaultPath(), "path to config.yaml")
	fs.StringVar(&c.Addr, "addr", "", "API address (overrides config)")
	fs.BoolVar(&c.Insecure, "insecure", false, "skip TLS verification")
	fs.StringVar(&c.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// OpenOptions tunes Open for the calling subcommand.
type OpenOptions struct {
	// Console sends logs to the configured file (or a default one) instead
	// of stderr.
	Console bool
	// Registry enables gateway metrics when set.
	Registry prometheus.Registerer
	// Stderr receives CLI logs and the expired-session notice.
	Stderr io.Writer
}

// Env is an opened command environment.
type Env struct {
	Config  config.Config
	Log     *logging.Logger
	Client  *adminapi.Client
	Metrics *adminapi.Metrics

	closeStore func() error
}

// Open loads configuration and builds the client. Close must be called.
func Open(ctx context.Context, c Common, opt OpenOptions) (*Env, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.Addr != "" {
		cfg.API.Addr = c.Addr
	}
	if c.Insecure {
		cfg.API.Insecure = true
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if err := cfg.RequireAPI(); err != nil {
		return nil, err
	}
	if !cfg.API.Insecure && adminui.RequireInsecureByDefault(cfg.API.Addr) {
		cfg.API.Insecure = true
	}

	stderr := opt.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	lo := logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Writer: stderr, File: cfg.Log.File, DefaultSlog: true}
	if opt.Console && lo.File == "" {
		lo.File = DefaultLogFile()
	}
	lg, err := logging.New(lo)
	if err != nil {
		return nil, err
	}

	st, closeStore, err := isetup.OpenStore(ctx, cfg)
	if err != nil {
		_ = lg.Close()
		return nil, err
	}

	env := &Env{Config: cfg, Log: lg, closeStore: closeStore}
	if opt.Registry != nil {
		env.Metrics = adminapi.NewMetrics(opt.Registry)
	}
	ua := cfg.API.UserAgent
	if ua == "" {
		ua = "dtadmin/" + version.Version
	}
	var onSignOut func(adminapi.SignOutReason)
	if !opt.Console {
		onSignOut = func(r adminapi.SignOutReason) {
			if r == adminapi.ReasonExpired {
				fmt.Fprintln(stderr, "session expired; run dtadmin login")
			}
		}
	}
	env.Client, err = adminapi.NewClient(adminapi.ClientOptions{
		Addr:      cfg.API.Addr,
		Insecure:  cfg.API.Insecure,
		Timeout:   cfg.API.Timeout,
		UserAgent: ua,
		Store:     st,
		Logger:    lg.Logger,
		Metrics:   env.Metrics,
		OnSignOut: onSignOut,
	})
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	return env, nil
}

// Close releases the token store and log file.
func (e *Env) Close() error {
	var errs []error
	if e.closeStore != nil {
		errs = append(errs, e.closeStore())
		e.closeStore = nil
	}
	errs = append(errs, e.Log.Close())
	return errors.Join(errs...)
}

// DefaultLogFile is where the console logs when no file is configured.
func DefaultLogFile() string {
	return filepath.Join(config.Dir(), "dtadmin.log")
}

// Context returns a context cancelled on SIGINT or SIGTERM.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
