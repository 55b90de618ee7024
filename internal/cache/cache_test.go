package cache

import (
	"bytes"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{PageCacheSizeMB: 8, PageTTL: time.Minute, QueryCacheSize: 2})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_Page(t *testing.T) {
	m := newTestManager(t)

	if _, ok := m.GetPage(PageKey("default")); ok {
		t.Fatal("expected empty cache")
	}
	if err := m.SetPage(PageKey("default"), []byte("<html>")); err != nil {
		t.Fatalf("SetPage: %v", err)
	}
	got, ok := m.GetPage(PageKey("default"))
	if !ok || !bytes.Equal(got, []byte("<html>")) {
		t.Fatalf("GetPage = %q, %v", got, ok)
	}
	if _, ok := m.GetPage(PageKey("other")); ok {
		t.Fatal("expected miss for another dataset")
	}
}

func TestManager_QueryEviction(t *testing.T) {
	m := newTestManager(t)

	m.SetQuery(FilterKey("d", 5), []byte("a"))
	m.SetQuery(FilterKey("d", 10), []byte("b"))
	m.SetQuery(FilterKey("d", 60), []byte("c"))

	if _, ok := m.GetQuery(FilterKey("d", 5)); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if got, ok := m.GetQuery(FilterKey("d", 60)); !ok || string(got) != "c" {
		t.Errorf("GetQuery = %q, %v", got, ok)
	}
	if n := m.Stats()["query_cache_len"]; n != 2 {
		t.Errorf("query_cache_len = %v, want 2", n)
	}
}

func TestKeys(t *testing.T) {
	t.Run("filterKeyDistinct", func(t *testing.T) {
		if FilterKey("a", 10) == FilterKey("a", 10.5) {
			t.Fatal("expected distinct keys for distinct thresholds")
		}
		if FilterKey("a", 10) == FilterKey("b", 10) {
			t.Fatal("expected distinct keys for distinct datasets")
		}
	})

	t.Run("previewKey", func(t *testing.T) {
		if got, want := PreviewKey("a", 512, "viridis"), "preview:a:512:viridis"; got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	})
}

func TestNewManager_InvalidTTL(t *testing.T) {
	if _, err := NewManager(Config{PageCacheSizeMB: 8, QueryCacheSize: 2}); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
