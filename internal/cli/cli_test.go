package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/internal/testutils"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/persistence/middleware"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func testSettings(t *testing.T) Settings {
	t.Helper()
	s, err := ReadSettings(NewViper(), "")
	require.NoError(t, err)
	dir := t.TempDir()
	writeConfig(t, dir, "contact", testutils.ContactYAML)
	s.ConfigDir = dir
	s.Config = "contact"
	s.LogLevel = "off"
	return s
}

func TestReadSettings(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		s, err := ReadSettings(NewViper(), "")
		require.NoError(t, err)
		assert.Equal(t, "configs", s.ConfigDir)
		assert.Equal(t, BackendMemory, s.Store.Backend)
		assert.Equal(t, 10*time.Second, s.Store.LockTTL)
		assert.Equal(t, 24*time.Hour, s.Prune.MaxAge)
		assert.Equal(t, 5, s.RateLimit.Burst)
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv("INTAKE_STORE_BACKEND", "redis")
		t.Setenv("INTAKE_LLM_TIMEOUT", "5s")
		s, err := ReadSettings(NewViper(), "")
		require.NoError(t, err)
		assert.Equal(t, BackendRedis, s.Store.Backend)
		assert.Equal(t, 5*time.Second, s.LLM.Timeout)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intake.yaml")
		require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\nstore:\n  backend: sql\n  dsn: test.db\n"), 0o644))
		s, err := ReadSettings(NewViper(), path)
		require.NoError(t, err)
		assert.Equal(t, ":9090", s.Addr)
		assert.Equal(t, BackendSQL, s.Store.Backend)
		assert.Equal(t, "test.db", s.Store.DSN)
	})

	t.Run("Missing explicit file", func(t *testing.T) {
		_, err := ReadSettings(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		settings StoreSettings
	}{
		{"memory", StoreSettings{Backend: BackendMemory}},
		{"file", StoreSettings{Backend: BackendFile, Path: t.TempDir()}},
		{"sql", StoreSettings{Backend: BackendSQL, DSN: filepath.Join(t.TempDir(), "intake.db")}},
		{"encrypted", StoreSettings{Backend: BackendMemory, EncryptionKey: testKey}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := OpenBackend(tc.settings)
			require.NoError(t, err)
			defer b.Close()

			conv := domain.NewConversation("s1", time.Now())
			conv.AddMessage(domain.RoleUser, "hello", time.Now())
			require.NoError(t, b.Store.Create(ctx, conv))

			got, err := b.Store.Get(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, got.Messages, 1)
			assert.Equal(t, "hello", got.Messages[0].Content)
		})
	}

	t.Run("Unknown backend", func(t *testing.T) {
		_, err := OpenBackend(StoreSettings{Backend: "etcd"})
		assert.ErrorContains(t, err, "unknown store backend")
	})

	t.Run("Bad key", func(t *testing.T) {
		_, err := OpenBackend(StoreSettings{Backend: BackendMemory, EncryptionKey: "short"})
		assert.Error(t, err)
	})
}

func TestBackend_Inspection(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBackend(StoreSettings{Backend: BackendMemory})
	require.NoError(t, err)

	conv := domain.NewConversation("s1", time.Now())
	conv.AddMessage(domain.RoleUser, "jane@example.com", time.Now())
	conv.Attempt("email", time.Now())
	conv.Commit("email", "jane@example.com", 1, time.Now())
	require.NoError(t, b.Store.Create(ctx, conv))

	masked, err := b.Inspection().Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, masked.Fields["email"].Value)
	assert.NotContains(t, masked.Messages[0].Content, "jane@example.com")

	raw, err := b.Store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", raw.Fields["email"].Value)
}

func TestLoadAgentConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "contact", testutils.ContactYAML)

	t.Run("By name", func(t *testing.T) {
		cfg, registry, err := LoadAgentConfig(Settings{ConfigDir: dir, Config: "contact"})
		require.NoError(t, err)
		assert.Equal(t, "contact", cfg.Name)
		assert.Same(t, cfg, registry.Active())

		got, ok := ConfigPath(registry)
		require.True(t, ok)
		assert.Equal(t, path, got)
	})

	t.Run("By path", func(t *testing.T) {
		cfg, registry, err := LoadAgentConfig(Settings{ConfigDir: "elsewhere", Config: path})
		require.NoError(t, err)
		assert.Equal(t, "contact", cfg.Name)
		assert.Equal(t, dir, registry.Dir())
	})

	t.Run("Missing", func(t *testing.T) {
		_, _, err := LoadAgentConfig(Settings{ConfigDir: dir, Config: "nope"})
		assert.Error(t, err)
	})
}

func TestCollaborators(t *testing.T) {
	assert.Empty(t, Collaborators(LLMSettings{}))
	assert.Len(t, Collaborators(LLMSettings{APIKey: "sk-test", Model: "m", RatePerSecond: 1}), 3)
}

func TestRunChat(t *testing.T) {
	s := testSettings(t)
	var out bytes.Buffer

	err := RunChat(context.Background(), s, ChatOptions{
		In:  strings.NewReader("Jane Doe\njane@example.com\n"),
		Out: &out,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Could you please provide your name?")
	assert.Contains(t, text, "Thank you! We have all the information we need.")
	assert.Contains(t, text, "email: jane@example.com")
	assert.Contains(t, text, "name: Jane Doe")
}

func TestRunChat_JSON(t *testing.T) {
	s := testSettings(t)
	var out bytes.Buffer

	err := RunChat(context.Background(), s, ChatOptions{
		JSON: true,
		In:   strings.NewReader("{\"message\":\"I want a human\"}\n"),
		Out:  &out,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"status":"escalated"`)
	assert.NotContains(t, out.String(), "email:")
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBackend(StoreSettings{Backend: BackendMemory})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ListSessions(ctx, b.Store, ports.ListOptions{}, &out))
	assert.Equal(t, "No sessions found.\n", out.String())

	conv := domain.NewConversation("abc", time.Now())
	conv.ConfigName = "contact"
	require.NoError(t, b.Store.Create(ctx, conv))

	out.Reset()
	require.NoError(t, ListSessions(ctx, b.Store, ports.ListOptions{}, &out))
	assert.Contains(t, out.String(), "SESSION")
	assert.Contains(t, out.String(), "abc")
	assert.Contains(t, out.String(), "contact")

	out.Reset()
	require.NoError(t, InspectSession(ctx, b.Store, "abc", &out))
	assert.Contains(t, out.String(), `"session_id": "abc"`)

	assert.ErrorIs(t, InspectSession(ctx, b.Store, "missing", &out), domain.ErrSessionNotFound)
}

type countingPruner struct{ calls atomic.Int32 }

func (p *countingPruner) Prune(context.Context, time.Duration) (int, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestPruneLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &countingPruner{}
	done := make(chan struct{})
	go func() {
		PruneLoop(ctx, p, PruneSettings{Interval: 5 * time.Millisecond, MaxAge: time.Hour}, logging.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestWatchConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "contact", testutils.ContactYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go func() {
		_ = WatchConfig(ctx, path, 5*time.Millisecond, logging.NewNop(), func() error {
			reloads.Add(1)
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, reloads.Load())

	writeConfig(t, dir, "contact", testutils.ContactYAML+"\n# edited\n")
	assert.Eventually(t, func() bool { return reloads.Load() == 1 }, time.Second, 5*time.Millisecond)
}
