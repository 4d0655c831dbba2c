package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/minjen/minjen-counter/backend/go-services/internal/config"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan/repository"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "pages": [{"id": "main", "name": "Main", "minyanim": [{"id": "m1", "label": "Shacharit"}]}],
  "participants": {"m1": [{"uid": "u1", "email": "u1@x.com"}]}
}`

func TestTargetConfig(t *testing.T) {
	base := &config.Config{Store: config.StoreConfig{DataFile: "./data.json"}, Redis: config.RedisConfig{Host: "r", StateKey: "k"}}

	cfg, err := targetConfig(base, "file:/tmp/x.json")
	require.NoError(t, err)
	require.Equal(t, "/tmp/x.json", cfg.Store.DataFile)
	require.Equal(t, "./data.json", base.Store.DataFile)

	cfg, err = targetConfig(base, "redis:other")
	require.NoError(t, err)
	require.Equal(t, "other", cfg.Redis.StateKey)

	_, err = targetConfig(base, "mongo")
	require.Error(t, err, "mongo without MONGODB_URI")

	_, err = targetConfig(base, "tape:1")
	require.Error(t, err)
}

func TestTargetConfigUsesEnvWhenServerBackendInvalid(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := targetConfig(config.Load(), "redis")
	require.NoError(t, err)
	require.Equal(t, config.BackendRedis, cfg.Store.Backend)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr())
}

func TestRunFileToRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	host, port, err := net.SplitHostPort(m.Addr())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(src, []byte(fixture), 0o644))

	base := &config.Config{Redis: config.RedisConfig{Host: host, Port: port, StateKey: "minjen:state"}}
	ctx := context.Background()
	n, err := run(ctx, base, "file:"+src, "redis", false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	raw, err := m.Get("minjen:state")
	require.NoError(t, err)
	got, err := repository.Decode([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, "Main", got.Pages[0].Name)
	require.Equal(t, "u1", got.Participants["m1"][0].UID)

	// second copy refuses to clobber without -force
	_, err = run(ctx, base, "file:"+src, "redis", false)
	require.Error(t, err)
	_, err = run(ctx, base, "file:"+src, "redis", true)
	require.NoError(t, err)
}

func TestRunFileToFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.json")
	dst := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(src, []byte(fixture), 0o644))

	_, err := run(context.Background(), &config.Config{}, "file:"+src, "file:"+dst, false)
	require.NoError(t, err)

	got, err := repository.NewFileRepo(dst).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []minyan.Minyan{{ID: "m1", Label: "Shacharit"}}, got.Pages[0].Minyanim)
}
