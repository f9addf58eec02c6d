package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type capturedPut struct {
	path string
	body string
}

// fakeStore is an httptest stand-in for an S3-compatible endpoint that
// records every PutObject request.
type fakeStore struct {
	mu   sync.Mutex
	puts []capturedPut
}

func (s *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.puts = append(s.puts, capturedPut{path: r.URL.Path, body: string(body)})
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
}

func newTestArchiver(t *testing.T) (*Archiver, *fakeStore) {
	t.Helper()

	store := &fakeStore{}
	srv := httptest.NewServer(store.handler())
	t.Cleanup(srv.Close)

	client, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "updownbot-data",
		AccessKey:      "test-access",
		SecretKey:      "test-secret",
		ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return NewArchiver(client, "ledgers"), store
}

func writeLedgerFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestArchiveFileKeyedByCycleSuffix(t *testing.T) {
	a, store := newTestArchiver(t)
	path := writeLedgerFile(t, "trade_record.csv", "bought_timestamp,event\n")

	if err := a.ArchiveFile(context.Background(), path, 1768539600); err != nil {
		t.Fatalf("ArchiveFile: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(store.puts))
	}
	want := "/updownbot-data/ledgers/1768539600/trade_record.csv"
	if store.puts[0].path != want {
		t.Errorf("key = %s, want %s", store.puts[0].path, want)
	}
	if !strings.Contains(store.puts[0].body, "bought_timestamp,event") {
		t.Errorf("body = %q", store.puts[0].body)
	}
}

func TestArchiveSnapshotKeyedByTimestamp(t *testing.T) {
	a, store := newTestArchiver(t)
	path := writeLedgerFile(t, "event_results.csv", "event,suffix,outcome\n")

	at := time.Date(2026, 1, 16, 10, 2, 0, 0, time.UTC)
	if err := a.ArchiveSnapshot(context.Background(), path, at); err != nil {
		t.Fatalf("ArchiveSnapshot: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(store.puts))
	}
	want := "/updownbot-data/ledgers/20260116-100200-event_results.csv"
	if store.puts[0].path != want {
		t.Errorf("key = %s, want %s", store.puts[0].path, want)
	}
}

func TestArchiveFileMissingFile(t *testing.T) {
	a, store := newTestArchiver(t)

	err := a.ArchiveFile(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), 1)
	if err == nil {
		t.Fatal("expected error for a missing file")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.puts) != 0 {
		t.Errorf("puts = %d, nothing should upload", len(store.puts))
	}
}
