package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
	"github.com/brianalban07/spartanfiles.github.io/internal/config"
)

const (
	benchUser     = "bench"
	benchPassword = "bench-password"
	benchCategory = "Bench"
)

type benchOptions struct {
	sessions    int
	files       int
	concurrency int
	ops         int
	redisAddr   string
}

func newBenchCmd() *cobra.Command {
	opts := benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure session resolution and listing throughput",
		Long: `Seed sessions and files into a throwaway storage root, then time concurrent
Resolve and ListFiles calls. Without --redis-addr an embedded Redis is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.sessions, "sessions", 1000, "number of sessions to seed")
	cmd.Flags().IntVar(&opts.files, "files", 50, "number of files to seed in the listed category")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "operations per phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; empty starts an embedded one")
	return cmd
}

func runBench(ctx context.Context, opts benchOptions, out io.Writer) error {
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.files < 0 {
		return errors.New("sessions, concurrency and ops must be > 0")
	}

	root, err := os.MkdirTemp("", "spartanfiles-bench-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(root)

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	cfg := spartanfiles.DefaultConfig()
	cfg.Storage.Root = root
	cfg.Session.SigningKey = key
	cfg.Session.RedisPrefix = "sfs-bench"

	logger := slog.New(slog.DiscardHandler)
	client, closeRedis, err := openRedis(ctx, config.RedisSection{
		Addr:     opts.redisAddr,
		Embedded: opts.redisAddr == "",
	}, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	repo, err := spartanfiles.New().
		WithConfig(cfg).
		WithRedis(client).
		WithVerifier(spartanfiles.StaticCredentials{Username: benchUser, Password: benchPassword}).
		Build()
	if err != nil {
		return err
	}
	defer repo.Close()
	defer func() { _, _ = repo.LogoutAll(context.WithoutCancel(ctx), benchUser) }()

	fmt.Fprintf(out, "seeding %d sessions and %d files...\n", opts.sessions, opts.files)
	startSeed := time.Now()
	tokens := make([]string, opts.sessions)
	for i := range tokens {
		sess, err := repo.Authenticate(ctx, benchUser, benchPassword)
		if err != nil {
			return fmt.Errorf("seed session %d: %w", i, err)
		}
		tokens[i] = sess.Token
	}

	p, err := repo.Resolve(ctx, tokens[0])
	if err != nil {
		return err
	}
	authed := spartanfiles.WithPrincipal(ctx, p)
	dept := cfg.Storage.Departments[0]
	for i := 0; i < opts.files; i++ {
		name := fmt.Sprintf("file-%04d.txt", i)
		if _, err := repo.Upload(authed, dept, benchCategory, name, bytes.NewReader([]byte(name))); err != nil {
			return fmt.Errorf("seed file %s: %w", name, err)
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolveStats := runPhase(opts.ops, opts.concurrency, func(r *mrand.Rand) error {
		_, err := repo.Resolve(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	listStats := runPhase(opts.ops, opts.concurrency, func(*mrand.Rand) error {
		_, err := repo.ListFiles(authed, dept, benchCategory)
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "resolve", resolveStats)
	printStats(out, "list", listStats)
	return nil
}

// runPhase spreads ops calls of op over concurrency workers and records each latency.
func runPhase(ops, concurrency int, op func(r *mrand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects samples sorted ascending.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
