// Package admin implements "dtadmin admin", the interactive console.
package admin

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"time"

	"dtadmin/internal/adminui"
	"dtadmin/internal/cmd/cmdutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Options struct {
	MetricsAddr  string
	MetricsAllow string
}

func Run(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	var opt Options
	fs.StringVar(&opt.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	fs.StringVar(&opt.MetricsAllow, "metrics-allow", "", "CIDRs or IPs allowed to scrape metrics (default loopback only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	allow, err := parseAllow(opt.MetricsAllow)
	if err != nil {
		return err
	}

	ctx, cancel := cmdutil.Context()
	defer cancel()

	var reg *prometheus.Registry
	oo := cmdutil.OpenOptions{Console: true}
	if opt.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		oo.Registry = reg
	}
	env, err := cmdutil.Open(ctx, common, oo)
	if err != nil {
		return err
	}
	defer env.Close()

	if reg != nil {
		ln, err := net.Listen("tcp", opt.MetricsAddr)
		if err != nil {
			return err
		}
		srv := &http.Server{
			Handler:           (&metricsServer{lg: env.Log.Logger, reg: reg, allow: allow}).router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.Log.Error("metrics server", "err", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
		env.Log.Info("serving metrics", "addr", ln.Addr().String())
	}

	env.Log.Info("console starting", "api", env.Config.API.Addr, "store", env.Config.Store.Kind)
	return adminui.Run(ctx, env.Client, adminui.Options{
		PageSize:       env.Config.UI.PageSize,
		SearchDebounce: env.Config.UI.SearchDebounce,
		Logger:         env.Log.Logger,
	})
}
