// Package setup implements the "dtadmin setup" CLI subcommand.
package setup

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"dtadmin/internal/adminui"
	"dtadmin/internal/config"
	isetup "dtadmin/internal/setup"
)

type Options struct {
	ConfigPath string
	Addr       string
	Insecure   bool
	StoreKind  string
	StorePath  string
	LogLevel   string
	LogFile    string
	PageSize   int
	Force      bool
}

func Run(args []string) error {
	return run(context.Background(), args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var opt Options
	fs.StringVar(&opt.ConfigPath, "config", config.DefaultPath(), "path of the config file to write")
	fs.StringVar(&opt.Addr, "addr", "", "marketplace API address (required)")
	fs.BoolVar(&opt.Insecure, "insecure", false, "skip TLS verification (localhost/self-signed only)")
	fs.StringVar(&opt.StoreKind, "store", config.StoreSQLite, "token store: sqlite, file or memory")
	fs.StringVar(&opt.StorePath, "store-path", "", "token store path (default next to the config)")
	fs.StringVar(&opt.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&opt.LogFile, "log-file", "", "log file for the console")
	fs.IntVar(&opt.PageSize, "page-size", 0, "rows per page")
	fs.BoolVar(&opt.Force, "force", false, "overwrite an existing config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !opt.Insecure && opt.Addr != "" && adminui.RequireInsecureByDefault(opt.Addr) {
		opt.Insecure = true
	}

	c, err := isetup.Run(ctx, isetup.Options{
		ConfigPath: opt.ConfigPath,
		Addr:       opt.Addr,
		Insecure:   opt.Insecure,
		StoreKind:  opt.StoreKind,
		StorePath:  opt.StorePath,
		LogLevel:   opt.LogLevel,
		LogFile:    opt.LogFile,
		PageSize:   opt.PageSize,
		Force:      opt.Force,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "Wrote %s\nAPI: %s\nToken store: %s %s\nNext: dtadmin login\n", opt.ConfigPath, c.API.Addr, c.Store.Kind, c.Store.Path)
	return err
}
