package cli

import (
	"context"
	"io"
	"testing"

	"github.com/pydeb/pydeb/pkg/cache"
)

func TestCacheClearPurgesActiveBackend(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(redisAddrEnv, "")

	ctx := context.Background()
	dir, err := cacheDir()
	if err != nil {
		t.Fatal(err)
	}
	backend, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.Set(ctx, "index:six", []byte("{}"), 0); err != nil {
		t.Fatal(err)
	}
	backend.Close()

	cmd := New(io.Discard, LogInfo).cacheCommand()
	cmd.SetArgs([]string{"clear"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cache clear: %v", err)
	}

	reopened, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if _, hit, _ := reopened.Get(ctx, "index:six"); hit {
		t.Error("entry survived cache clear")
	}
}
