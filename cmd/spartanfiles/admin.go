package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
	"github.com/brianalban07/spartanfiles.github.io/internal/logging"
	"github.com/brianalban07/spartanfiles.github.io/password"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print an Argon2id hash for auth.passwordHash",
		Long: `Hash a password for the passwordHash setting. Without an argument the first
line of stdin is read, which keeps the password out of shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plain := ""
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := firstLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				plain = line
			}

			hasher, err := password.NewArgon2(password.DefaultConfig())
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(plain)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func firstLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password on stdin")
	}
	return strings.TrimRight(sc.Text(), "\r"), nil
}

func newRevokeSessionsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-sessions <username>",
		Short: "Sign a user out everywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := g.load()
			if err != nil {
				return err
			}
			if f.Redis.Embedded {
				return errors.New("revoke-sessions needs the shared redis, not an embedded one")
			}

			logCfg := f.LoggingConfig()
			logCfg.Output = cmd.ErrOrStderr()
			logger := logging.New(logCfg)

			repoCfg, err := f.RepositoryConfig()
			if err != nil {
				return err
			}
			client, closeRedis, err := openRedis(cmd.Context(), f.Redis, logger)
			if err != nil {
				return err
			}
			defer closeRedis()

			repo, err := spartanfiles.New().WithConfig(repoCfg).WithRedis(client).WithLogger(logger).Build()
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := repo.LogoutAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "revoked %d session(s) for %s\n", n, args[0])
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "spartanfiles %s (%s)\n", version, runtime.Version())
			return err
		},
	}
}
