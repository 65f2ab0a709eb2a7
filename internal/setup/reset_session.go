package setup

import (
	"context"
	"errors"

	"dtadmin/internal/config"
	"dtadmin/internal/db"
)

type ResetSessionOptions struct {
	ConfigPath string
}

// ResetSession drops the stored tokens without contacting the backend. It
// is the way out when the server is unreachable or the refresh token is
// unusable.
func ResetSession(ctx context.Context, opt ResetSessionOptions) (config.Config, error) {
	if opt.ConfigPath == "" {
		return config.Config{}, errors.New("config path is required")
	}
	c, err := config.Load(opt.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}

	if c.Store.Kind == config.StoreSQLite {
		d, err := db.Open(ctx, c.Store.Path)
		if err != nil {
			return config.Config{}, err
		}
		initialized, err := d.IsInitialized(ctx)
		_ = d.Close()
		if err != nil {
			return config.Config{}, err
		}
		if !initialized {
			return config.Config{}, errors.New("not initialized; run setup")
		}
	}

	st, closeStore, err := OpenStore(ctx, c)
	if err != nil {
		return config.Config{}, err
	}
	defer closeStore()
	return c, st.Clear(ctx)
}
