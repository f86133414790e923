package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
	"github.com/brianalban07/spartanfiles.github.io/internal/config"
	"github.com/brianalban07/spartanfiles.github.io/internal/logging"
	otelexport "github.com/brianalban07/spartanfiles.github.io/metrics/export/otel"
	"github.com/brianalban07/spartanfiles.github.io/server"
)

const meterName = "github.com/brianalban07/spartanfiles.github.io"

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr     string
		embedded bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the repository over HTTP",
		Long: `Start the HTTP server. It stops accepting connections on SIGINT or SIGTERM and
drains in-flight requests before exiting.

Example:
  # Single box, no external Redis
  spartanfiles serve --embedded-redis

  # Behind NGINX with a config file
  spartanfiles serve --config /etc/spartanfiles.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := g.load()
			if err != nil {
				return err
			}
			if addr != "" {
				f.Server.Addr = addr
			}
			if embedded {
				f.Redis.Embedded = true
			}
			return runServe(cmd.Context(), f, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the config file")
	cmd.Flags().BoolVar(&embedded, "embedded-redis", false, "run an in-process Redis instead of connecting to one")
	return cmd
}

func runServe(ctx context.Context, f *config.File, logOut io.Writer) error {
	logCfg := f.LoggingConfig()
	logCfg.Output = logOut
	logCfg.Version = version
	logger := logging.New(logCfg)

	repoCfg, err := f.RepositoryConfig()
	if err != nil {
		return err
	}

	client, closeRedis, err := openRedis(ctx, f.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	repo, err := spartanfiles.New().
		WithConfig(repoCfg).
		WithRedis(client).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer repo.Close()

	if repoCfg.Metrics.Enabled {
		// Observed through whatever MeterProvider the process installs globally.
		exp, err := otelexport.NewExporter(otel.GetMeterProvider().Meter(meterName), repo)
		if err != nil {
			return err
		}
		defer func() {
			if err := exp.Close(); err != nil {
				logger.Warn("unregister otel callback", "error", err)
			}
		}()
	}

	srvCfg, err := f.ServerConfig()
	if err != nil {
		return err
	}
	srv, err := server.New(repo, srvCfg, logger)
	if err != nil {
		return err
	}
	logger.Info("spartanfiles starting",
		"root", repoCfg.Storage.Root,
		"departments", repoCfg.Storage.Departments,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("spartanfiles stopped")
	return nil
}
