package handlers

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempExport(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("xlsx"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDownloadStoreTakeOnce(t *testing.T) {
	s := newDownloadStore()
	path := tempExport(t, "a.xlsx")

	token := s.put(path, "forecast.xlsx", time.Minute)
	item, ok := s.take(token)
	if !ok || item.filePath != path || item.fileName != "forecast.xlsx" {
		t.Fatalf("take = %+v, %v", item, ok)
	}
	if _, ok := s.take(token); ok {
		t.Fatalf("token should be single use")
	}
}

func TestDownloadStoreExpiresAndRemovesFile(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newDownloadStore()
	s.now = func() time.Time { return now }

	path := tempExport(t, "old.xlsx")
	token := s.put(path, "forecast.xlsx", time.Minute)

	now = now.Add(2 * time.Minute)
	if _, ok := s.take(token); ok {
		t.Fatalf("expired token accepted")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expired file not removed: %v", err)
	}
}

func TestDownloadStoreEvictsOldest(t *testing.T) {
	s := newDownloadStore()
	first := tempExport(t, "first.xlsx")
	firstToken := s.put(first, "forecast.xlsx", time.Hour)
	for i := 0; i < maxPendingDownloads; i++ {
		s.put(tempExport(t, "f.xlsx"), "forecast.xlsx", time.Hour)
	}
	if len(s.pending) != maxPendingDownloads {
		t.Fatalf("pending = %d, want %d", len(s.pending), maxPendingDownloads)
	}
	if _, ok := s.take(firstToken); ok {
		t.Fatalf("oldest download should have been evicted")
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatalf("evicted file not removed: %v", err)
	}
}
