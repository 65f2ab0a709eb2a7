// Package setup prepares a workstation for dtadmin: it writes the config
// file and initialises the local token store.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dtadmin/internal/config"
	"dtadmin/internal/db"
	"dtadmin/internal/session"
	"github.com/spf13/afero"
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
	// Force overwrites an existing config and re-marks the store.
	Force bool
}

// Run writes the config file and prepares the token store it names. It
// returns the config as it will be loaded by later commands.
func Run(ctx context.Context, opt Options) (config.Config, error) {
	if opt.ConfigPath == "" {
		return config.Config{}, errors.New("config path is required")
	}
	if strings.TrimSpace(opt.Addr) == "" {
		return config.Config{}, errors.New("api address is required")
	}
	if _, err := os.Stat(opt.ConfigPath); err == nil && !opt.Force {
		return config.Config{}, fmt.Errorf("%s already exists; use -force to overwrite", opt.ConfigPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, err
	}

	c := config.Default()
	c.API.Addr = strings.TrimRight(strings.TrimSpace(opt.Addr), "/")
	c.API.Insecure = opt.Insecure
	if opt.StoreKind != "" {
		c.Store.Kind = opt.StoreKind
	}
	// The store lives next to the config unless a path is given.
	c.Store.Path = ""
	if opt.StorePath != "" {
		c.Store.Path = opt.StorePath
	}
	if c.Store.Path == "" {
		switch c.Store.Kind {
		case config.StoreFile:
			c.Store.Path = filepath.Join(filepath.Dir(opt.ConfigPath), "session.json")
		case config.StoreSQLite:
			c.Store.Path = filepath.Join(filepath.Dir(opt.ConfigPath), "dtadmin.db")
		}
	}
	if opt.LogLevel != "" {
		c.Log.Level = opt.LogLevel
	}
	c.Log.File = opt.LogFile
	if opt.PageSize > 0 {
		c.UI.PageSize = opt.PageSize
	}

	if err := config.Save(opt.ConfigPath, c); err != nil {
		return config.Config{}, err
	}
	// Reload so the file is checked the same way every other command will
	// read it.
	loaded, err := config.Load(opt.ConfigPath)
	if err != nil {
		_ = os.Remove(opt.ConfigPath)
		return config.Config{}, err
	}

	switch loaded.Store.Kind {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(loaded.Store.Path), 0o700); err != nil {
			return config.Config{}, err
		}
		d, err := db.Open(ctx, loaded.Store.Path)
		if err != nil {
			return config.Config{}, err
		}
		defer d.Close()
		initialized, err := d.IsInitialized(ctx)
		if err != nil {
			return config.Config{}, err
		}
		if initialized && !opt.Force {
			return config.Config{}, errors.New("token store already initialized")
		}
		if err := d.SetInitialized(ctx, loaded.API.Addr); err != nil {
			return config.Config{}, err
		}
	case config.StoreFile:
		if err := os.MkdirAll(filepath.Dir(loaded.Store.Path), 0o700); err != nil {
			return config.Config{}, err
		}
	}
	return loaded, nil
}

// OpenStore returns the token store named by c and a func releasing it.
func OpenStore(ctx context.Context, c config.Config) (session.TokenStore, func() error, error) {
	nop := func() error { return nil }
	switch c.Store.Kind {
	case config.StoreMemory:
		return session.NewMemoryStore(), nop, nil
	case config.StoreFile:
		st, err := session.NewFileStore(afero.NewOsFs(), c.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, nop, nil
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(c.Store.Path), 0o700); err != nil {
			return nil, nil, err
		}
		d, err := db.Open(ctx, c.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return d.TokenStore(), d.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
}
