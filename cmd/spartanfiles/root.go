package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/brianalban07/spartanfiles.github.io/internal/config"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "spartanfiles",
		Short: "Session-gated department file repository",
		Long: `spartanfiles stores files under department and category directories and serves
them to a signed-in user over HTTP.

Configuration comes from an optional YAML file (--config) with SPARTANFILES_*
environment variables taking precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to the YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(g),
		newHashPasswordCmd(),
		newRevokeSessionsCmd(g),
		newBenchCmd(),
		newVersionCmd(),
	)
	return root
}

// load reads the config file and applies the environment on top.
func (g *globalFlags) load() (*config.File, error) {
	f, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	f.ApplyEnv(os.LookupEnv)
	if g.logLevel != "" {
		f.Logging.Level = g.logLevel
	}
	return f, nil
}

// openRedis connects to the configured server, or starts an in-process one when Embedded is
// set. The returned func releases everything.
func openRedis(ctx context.Context, sec config.RedisSection, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if sec.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("using embedded redis; sessions do not survive a restart", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{sec.Addr},
		Password: sec.Password,
		DB:       sec.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", sec.Addr, err)
	}
	return client, func() { _ = client.Close() }, nil
}
