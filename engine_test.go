package spartanfiles

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func repositoryTestConfig(root string) Config {
	cfg := validTestConfig()
	cfg.Storage.Root = root
	cfg.Security.MaxLoginAttempts = 3
	cfg.Security.LoginCooldownDuration = time.Minute
	cfg.Password = PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	return cfg
}

func newTestRepository(t *testing.T, mutate func(*Config)) (*Repository, *miniredis.Miniredis, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "uploads")
	cfg := repositoryTestConfig(root)
	if mutate != nil {
		mutate(&cfg)
	}
	mr, rdb := newTestRedis(t)

	repo, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo, mr, root
}

// signedIn logs in as the configured user and returns a context carrying the principal.
func signedIn(t *testing.T, repo *Repository) context.Context {
	t.Helper()

	ctx := context.Background()
	sess, err := repo.Authenticate(ctx, "spartan", "spartan-password")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	p, err := repo.Resolve(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return WithPrincipal(ctx, p)
}

// treeSnapshot records every path under root with the content of regular files.
func treeSnapshot(t *testing.T, root string) map[string]string {
	t.Helper()

	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		if d.IsDir() {
			out[rel] = "<dir>"
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return out
}

func TestBuildCreatesStorageRoot(t *testing.T) {
	_, _, root := newTestRepository(t, nil)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected storage root to exist, err=%v", err)
	}
}

func TestBuildRequiresRedisAndSingleUse(t *testing.T) {
	cfg := repositoryTestConfig(t.TempDir())
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected error without redis")
	}

	_, rdb := newTestRedis(t)
	b := New().WithConfig(cfg).WithRedis(rdb)
	repo, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer repo.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestBuildWithCustomVerifierSkipsConfiguredCredentials(t *testing.T) {
	cfg := repositoryTestConfig(t.TempDir())
	cfg.Auth = AuthConfig{}
	_, rdb := newTestRedis(t)

	repo, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithVerifier(StaticCredentials{Username: "lab", Password: "bench"}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer repo.Close()

	if _, err := repo.Authenticate(context.Background(), "lab", "bench"); err != nil {
		t.Fatalf("custom verifier login failed: %v", err)
	}
}

func TestAuthenticateResolveLogout(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)
	ctx := context.Background()

	sess, err := repo.Authenticate(ctx, "spartan", "spartan-password")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if sess.Token == "" || sess.ID == "" || sess.Username != "spartan" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if !sess.ExpiresAt.After(sess.IssuedAt) {
		t.Fatalf("expiry %v not after issue %v", sess.ExpiresAt, sess.IssuedAt)
	}

	p, err := repo.Resolve(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.Username != "spartan" || p.SessionID != sess.ID {
		t.Fatalf("unexpected principal %+v", p)
	}

	if err := repo.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("first logout: %v", err)
	}
	if err := repo.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("second logout must be harmless: %v", err)
	}
	if _, err := repo.Resolve(ctx, sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}

	snap := repo.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLogout] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
}

func TestActiveSessionOutlivesIdleWindow(t *testing.T) {
	repo, mr, _ := newTestRepository(t, func(c *Config) {
		c.Session.IdleTimeout = 10 * time.Minute
		c.Session.AbsoluteSessionLifetime = time.Hour
		c.Session.JitterEnabled = false
		c.Session.JitterRange = 0
	})
	ctx := context.Background()

	sess, err := repo.Authenticate(ctx, "spartan", "spartan-password")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	key := repo.config.Session.RedisPrefix + ":" + sess.ID
	if ttl := mr.TTL(key); ttl != 10*time.Minute {
		t.Fatalf("new session TTL = %v, want the idle timeout", ttl)
	}

	// Three reads nine minutes apart keep the session alive well past one idle window.
	for i := 0; i < 3; i++ {
		mr.FastForward(9 * time.Minute)
		if _, err := repo.Resolve(ctx, sess.Token); err != nil {
			t.Fatalf("Resolve after %d idle periods: %v", i+1, err)
		}
		ttl := mr.TTL(key)
		if ttl != 10*time.Minute {
			t.Fatalf("TTL after activity = %v, want 10m", ttl)
		}
		if remaining := time.Until(sess.ExpiresAt); ttl > remaining+time.Second {
			t.Fatalf("TTL %v passes the absolute expiry %v away", ttl, remaining)
		}
	}

	mr.FastForward(11 * time.Minute)
	if _, err := repo.Resolve(ctx, sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected idle session to be rejected, got %v", err)
	}
}

func TestSessionWithoutSlidingLastsFullLifetime(t *testing.T) {
	repo, mr, _ := newTestRepository(t, func(c *Config) {
		c.Session.SlidingExpiration = false
		c.Session.IdleTimeout = 10 * time.Minute
		c.Session.AbsoluteSessionLifetime = time.Hour
	})

	sess, err := repo.Authenticate(context.Background(), "spartan", "spartan-password")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ttl := mr.TTL(repo.config.Session.RedisPrefix + ":" + sess.ID); ttl != time.Hour {
		t.Fatalf("TTL = %v, want the absolute lifetime", ttl)
	}
}

func TestOverlongPasswordIsRejected(t *testing.T) {
	const longPassword = "a-correct-but-overlong-password"
	hash, err := newTestHasher(t).Hash(longPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	repo, _, _ := newTestRepository(t, func(c *Config) {
		c.Auth = AuthConfig{Username: "spartan", PasswordHash: hash}
		c.Password.MaxPasswordBytes = 16
	})
	if _, err := repo.Authenticate(context.Background(), "spartan", longPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for a password over the limit, got %v", err)
	}

	repo, _, _ = newTestRepository(t, func(c *Config) {
		c.Auth = AuthConfig{Username: "spartan", PasswordHash: hash}
	})
	if _, err := repo.Authenticate(context.Background(), "spartan", longPassword); err != nil {
		t.Fatalf("default limit rejected a %d byte password: %v", len(longPassword), err)
	}
}

func TestLogoutWithoutSessionIsHarmless(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)
	ctx := context.Background()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if err := repo.Logout(ctx, token); err != nil {
			t.Fatalf("Logout(%q) = %v", token, err)
		}
	}
}

func TestAuthenticateRejectsWithoutSayingWhich(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)
	ctx := context.Background()

	_, errUser := repo.Authenticate(ctx, "nobody", "spartan-password")
	_, errPass := repo.Authenticate(ctx, "spartan", "wrong")
	if !errors.Is(errUser, ErrInvalidCredentials) || !errors.Is(errPass, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v / %v", errUser, errPass)
	}
	if errUser.Error() != errPass.Error() {
		t.Fatalf("failure messages differ: %q vs %q", errUser, errPass)
	}
}

func TestAuthenticateRateLimit(t *testing.T) {
	repo, mr, _ := newTestRepository(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Authenticate(ctx, "spartan", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := repo.Authenticate(ctx, "spartan", "spartan-password"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if _, err := repo.Authenticate(ctx, "spartan", "spartan-password"); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
	if repo.MetricsSnapshot().Counters[MetricLoginRateLimited] != 1 {
		t.Fatal("rate limited login not counted")
	}
}

func TestSuccessfulLoginResetsFailures(t *testing.T) {
	repo, mr, _ := newTestRepository(t, nil)
	ctx := context.Background()

	_, _ = repo.Authenticate(ctx, "spartan", "wrong")
	_, _ = repo.Authenticate(ctx, "spartan", "wrong")
	if _, err := repo.Authenticate(ctx, "spartan", "spartan-password"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if mr.Exists("sl:spartan") {
		t.Fatal("failure counter survived a successful login")
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)
	ctx := context.Background()

	for _, token := range []string{"", "not-a-token", "eyJhbGciOiJIUzI1NiJ9.e30.sig"} {
		if _, err := repo.Resolve(ctx, token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Resolve(%q) = %v, want ErrUnauthorized", token, err)
		}
	}
}

func TestResolveUserAgentBinding(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)

	loginCtx := WithUserAgent(context.Background(), "Mozilla/5.0 lab-pc")
	sess, err := repo.Authenticate(loginCtx, "spartan", "spartan-password")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if _, err := repo.Resolve(loginCtx, sess.Token); err != nil {
		t.Fatalf("same user agent rejected: %v", err)
	}
	other := WithUserAgent(context.Background(), "curl/8.0")
	if _, err := repo.Resolve(other, sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for another user agent, got %v", err)
	}
}

func TestResolveRedisOutage(t *testing.T) {
	repo, mr, _ := newTestRepository(t, nil)
	ctx := context.Background()

	sess, err := repo.Authenticate(ctx, "spartan", "spartan-password")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	mr.Close()

	if _, err := repo.Resolve(ctx, sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized during outage, got %v", err)
	}
	if err := repo.Ping(ctx); err == nil {
		t.Fatal("expected Ping to fail during outage")
	}
	if err := repo.Logout(ctx, sess.Token); !errors.Is(err, ErrSessionInvalidationFailed) {
		t.Fatalf("expected ErrSessionInvalidationFailed, got %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)
	ctx := context.Background()

	a, err := repo.Authenticate(ctx, "spartan", "spartan-password")
	if err != nil {
		t.Fatalf("login a: %v", err)
	}
	b, err := repo.Authenticate(ctx, "spartan", "spartan-password")
	if err != nil {
		t.Fatalf("login b: %v", err)
	}

	n, err := repo.LogoutAll(ctx, "spartan")
	if err != nil || n != 2 {
		t.Fatalf("LogoutAll = %d, %v; want 2", n, err)
	}
	for _, s := range []*Session{a, b} {
		if _, err := repo.Resolve(ctx, s.Token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("session %s survived LogoutAll: %v", s.ID, err)
		}
	}
}

func TestAnonymousCallsLeaveStorageUntouched(t *testing.T) {
	repo, _, root := newTestRepository(t, nil)
	authed := signedIn(t, repo)
	if _, err := repo.Upload(authed, "TE", "Reports", "keep.txt", strings.NewReader("keep")); err != nil {
		t.Fatalf("seed upload: %v", err)
	}

	before := treeSnapshot(t, root)
	anon := context.Background()

	calls := map[string]func() error{
		"ListDepartments": func() error { _, err := repo.ListDepartments(anon); return err },
		"ListCategories":  func() error { _, err := repo.ListCategories(anon, "TE"); return err },
		"Tree":            func() error { _, err := repo.Tree(anon); return err },
		"ListFiles":       func() error { _, err := repo.ListFiles(anon, "TE", "Reports"); return err },
		"Upload": func() error {
			_, err := repo.Upload(anon, "PE", "New", "x.txt", strings.NewReader("x"))
			return err
		},
		"UploadOverwrite": func() error {
			_, err := repo.Upload(anon, "TE", "Reports", "keep.txt", strings.NewReader("changed"))
			return err
		},
		"Delete":   func() error { return repo.Delete(anon, "TE", "Reports", "keep.txt") },
		"Download": func() error { _, err := repo.Download(anon, "TE", "Reports", "keep.txt"); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}

	if after := treeSnapshot(t, root); !reflect.DeepEqual(before, after) {
		t.Fatalf("storage changed by anonymous calls:\nbefore %v\nafter  %v", before, after)
	}
	if got := repo.MetricsSnapshot().Counters[MetricUnauthorized]; got != uint64(len(calls)) {
		t.Fatalf("expected %d unauthorized calls counted, got %d", len(calls), got)
	}
}

func TestExpiredPrincipalIsAnonymous(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)
	expired := *PrincipalFromContext(signedIn(t, repo))
	expired.ExpiresAt = time.Now().Add(-time.Second)
	ctx := WithPrincipal(context.Background(), &expired)

	if _, err := repo.ListDepartments(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestHandBuiltPrincipalIsAnonymous(t *testing.T) {
	repo, _, root := newTestRepository(t, nil)
	before := treeSnapshot(t, root)

	forged := &Principal{Username: "spartan", SessionID: "sid", ExpiresAt: time.Now().Add(time.Hour)}
	ctx := WithPrincipal(context.Background(), forged)

	if _, err := repo.ListDepartments(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ListDepartments: expected ErrUnauthorized, got %v", err)
	}
	if _, err := repo.Upload(ctx, "TE", "Reports", "a.txt", strings.NewReader("x")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Upload: expected ErrUnauthorized, got %v", err)
	}
	if after := treeSnapshot(t, root); !reflect.DeepEqual(before, after) {
		t.Fatalf("storage changed for a hand-built principal: %v", after)
	}
}

func TestPrincipalFromAnotherRepositoryIsAnonymous(t *testing.T) {
	repoA, _, _ := newTestRepository(t, nil)
	repoB, _, _ := newTestRepository(t, nil)

	ctx := signedIn(t, repoA)
	if _, err := repoA.ListDepartments(ctx); err != nil {
		t.Fatalf("issuing repository rejected its principal: %v", err)
	}
	if _, err := repoB.ListDepartments(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized from a different repository, got %v", err)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	repo, _, root := newTestRepository(t, nil)
	ctx := signedIn(t, repo)
	content := []byte("B")

	info, err := repo.Upload(ctx, "FAE", "Audits", "report.pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if info.Name != "report.pdf" || info.Size != int64(len(content)) {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "FAE", "Audits", "report.pdf")); err != nil {
		t.Fatalf("file not at expected path: %v", err)
	}

	dl, err := repo.Download(ctx, "FAE", "Audits", "report.pdf")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer dl.Content.Close()
	got, err := io.ReadAll(dl.Content)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestUploadSanitizesAndOverwrites(t *testing.T) {
	repo, _, _ := newTestRepository(t, nil)
	ctx := signedIn(t, repo)

	info, err := repo.Upload(ctx, "TE", "Specs", "weekly report.txt", strings.NewReader("v1"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if info.Name != "weekly_report.txt" {
		t.Fatalf("expected sanitized name, got %q", info.Name)
	}
	if _, err := repo.Upload(ctx, "TE", "Specs", "weekly report.txt", strings.NewReader("version 2")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	files, err := repo.ListFiles(ctx, "TE", "Specs")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].Size != int64(len("version 2")) {
		t.Fatalf("expected one overwritten file, got %+v", files)
	}
}

func TestUploadDisallowedTypeLeavesDirectoryUnchanged(t *testing.T) {
	repo, _, root := newTestRepository(t, nil)
	ctx := signedIn(t, repo)
	if _, err := repo.Upload(ctx, "PE", "Tools", "readme.txt", strings.NewReader("ok")); err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	before := treeSnapshot(t, root)

	for _, name := range []string{"setup.exe", "script.sh", "noextension", "archive.tar.bz2"} {
		if _, err := repo.Upload(ctx, "PE", "Tools", name, strings.NewReader("payload")); !errors.Is(err, ErrDisallowedFileType) {
			t.Fatalf("Upload(%q) = %v, want ErrDisallowedFileType", name, err)
		}
	}
	if _, err := repo.Upload(ctx, "PE", "Fresh", "setup.exe", strings.NewReader("payload")); !errors.Is(err, ErrDisallowedFileType) {
		t.Fatalf("expected ErrDisallowedFileType, got %v", err)
	}

	if after := treeSnapshot(t, root); !reflect.DeepEqual(before, after) {
		t.Fatalf("rejected uploads changed storage:\nbefore %v\nafter  %v", before, after)
	}
}

func TestDeleteGhostFile(t *testing.T) {
	repo, _, root := newTestRepository(t, nil)
	ctx := signedIn(t, repo)
	if _, err := repo.Upload(ctx, "ATE", "Logs", "run.log", strings.NewReader("ok")); err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	before := treeSnapshot(t, root)

	if err := repo.Delete(ctx, "ATE", "Logs", "ghost.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if after := treeSnapshot(t, root); !reflect.DeepEqual(before, after) {
		t.Fatal("deleting a missing file changed storage")
	}

	if err := repo.Delete(ctx, "ATE", "Logs", "run.log"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	files, err := repo.ListFiles(ctx, "ATE", "Logs")
	if err != nil || len(files) != 0 {
		t.Fatalf("expected empty category, got %v, %v", files, err)
	}
	if _, err := repo.Download(ctx, "ATE", "Logs", "run.log"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on download, got %v", err)
	}
}

func TestHierarchyListings(t *testing.T) {
	repo, _, root := newTestRepository(t, nil)
	ctx := signedIn(t, repo)

	depts, err := repo.ListDepartments(ctx)
	if err != nil {
		t.Fatalf("ListDepartments failed: %v", err)
	}
	if strings.Join(depts, ",") != "TE,PE,FAE,ATE,AFTE" {
		t.Fatalf("unexpected departments %v", depts)
	}

	cats, err := repo.ListCategories(ctx, "AFTE")
	if err != nil {
		t.Fatalf("missing department directory must not error: %v", err)
	}
	if cats == nil || len(cats) != 0 {
		t.Fatalf("expected empty non-nil categories, got %#v", cats)
	}

	for _, c := range []string{"Zeta", "Alpha"} {
		if err := os.MkdirAll(filepath.Join(root, "TE", c), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	tree, err := repo.Tree(ctx)
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if len(tree) != 5 || tree[0].Department != "TE" || strings.Join(tree[0].Categories, ",") != "Alpha,Zeta" {
		t.Fatalf("unexpected tree %+v", tree)
	}
	if _, err := repo.ListFiles(ctx, "TE", "Missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing category, got %v", err)
	}
}

func TestTraversalIsRejected(t *testing.T) {
	repo, _, root := newTestRepository(t, nil)
	ctx := signedIn(t, repo)
	before := treeSnapshot(t, root)

	checks := map[string]error{}
	_, checks["unknown department"] = repo.ListCategories(ctx, "HR")
	_, checks["parent department"] = repo.ListCategories(ctx, "..")
	_, checks["parent category"] = repo.ListFiles(ctx, "TE", "..")
	_, checks["nested category"] = repo.ListFiles(ctx, "TE", "a/../../b")
	_, checks["upload escape"] = repo.Upload(ctx, "TE", "Specs", "../../etc/passwd.txt", strings.NewReader("x"))
	_, checks["upload absolute"] = repo.Upload(ctx, "TE", "Specs", "/etc/cron.d/x.txt", strings.NewReader("x"))
	_, checks["download escape"] = repo.Download(ctx, "TE", "Specs", "../../../go.mod")
	checks["delete escape"] = repo.Delete(ctx, "TE", "..", "x.txt")
	_, checks["nul byte"] = repo.Download(ctx, "TE", "Specs", "a\x00.txt")

	for name, err := range checks {
		if !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("%s: expected ErrInvalidPath, got %v", name, err)
		}
	}
	if after := treeSnapshot(t, root); !reflect.DeepEqual(before, after) {
		t.Fatal("rejected paths changed storage")
	}
}

func TestWatchedCategoriesStayFresh(t *testing.T) {
	repo, _, root := newTestRepository(t, func(c *Config) { c.Storage.WatchCategories = true })
	ctx := signedIn(t, repo)

	if cats, _ := repo.ListCategories(ctx, "TE"); len(cats) != 0 {
		t.Fatalf("expected no categories, got %v", cats)
	}
	if _, err := repo.Upload(ctx, "TE", "Drawings", "a.png", strings.NewReader("png")); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	cats, err := repo.ListCategories(ctx, "TE")
	if err != nil || strings.Join(cats, ",") != "Drawings" {
		t.Fatalf("upload did not refresh categories: %v, %v", cats, err)
	}

	if err := os.Mkdir(filepath.Join(root, "TE", "Bench"), 0o755); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		cats, _ = repo.ListCategories(ctx, "TE")
		if strings.Join(cats, ",") == "Bench,Drawings" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("out-of-band category never appeared, got %v", cats)
		}
		time.Sleep(20 * time.Millisecond)
	}

	repo.Close()
	repo.Close()
}
