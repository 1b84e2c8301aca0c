package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) = hit %v, err %v; want miss", hit, err)
	}

	if err := c.Set(ctx, "page", []byte("<html></html>"), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "page")
	if err != nil || !hit {
		t.Fatalf("Get(page) = hit %v, err %v; want hit", hit, err)
	}
	if string(data) != "<html></html>" {
		t.Errorf("Get(page) = %q", data)
	}

	if err := c.Delete(ctx, "page"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "page"); hit {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "page"); err != nil {
		t.Errorf("Delete of missing key should not error: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Set(ctx, "short", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.path("short")); !os.IsNotExist(err) {
		t.Error("expired entry file should be removed")
	}

	if err := c.Set(ctx, "forever", []byte("y"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without TTL should hit")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path := c.path("bad")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "bad"); hit || err != nil {
		t.Errorf("corrupt entry: hit %v, err %v; want clean miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear() = %d, want 3", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("cache dir should be empty after Clear, has %d entries", len(entries))
	}
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	inner, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	a := NewScoped(inner, "owner:a:")
	b := NewScoped(inner, "owner:b:")

	if err := a.Set(ctx, "k", []byte("from-a"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := b.Get(ctx, "k"); hit {
		t.Error("scopes should not share keys")
	}
	data, hit, _ := inner.Get(ctx, "owner:a:k")
	if !hit || string(data) != "from-a" {
		t.Errorf("inner.Get(prefixed) = %q, %v", data, hit)
	}
}

func TestScopedNilInner(t *testing.T) {
	s := NewScoped(nil, "p:")
	if err := s.Set(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ := s.Get(context.Background(), "k"); hit {
		t.Error("nil inner should behave like NullCache")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestHTTPKey(t *testing.T) {
	if got := HTTPKey("dependents", "https://github.com/a/b/network/dependents"); got != "http:dependents:https://github.com/a/b/network/dependents" {
		t.Errorf("HTTPKey() = %q", got)
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("DEPGLOBE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("DEPGLOBE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	key := "depglobe:test:" + t.Name()
	defer c.Delete(ctx, key)

	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("Get before Set = hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, key, []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "value" {
		t.Errorf("Get = %q, %v, %v", data, hit, err)
	}
}
