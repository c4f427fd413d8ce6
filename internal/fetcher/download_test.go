package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_Download(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("%PDF-1.4 payload"))
	}))
	defer server.Close()

	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	ctx := context.Background()
	src := RemoteSource{URL: server.URL + "/lecture.pdf", Name: "lecture1.pdf"}

	if err := m.Download(ctx, "networks", src); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	dest := filepath.Join(m.Root(), "networks", "lecture1.pdf")
	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if string(content) != "%PDF-1.4 payload" {
		t.Errorf("downloaded content = %q", content)
	}

	// Existing files are not re-fetched.
	if err := m.Download(ctx, "networks", src); err != nil {
		t.Fatalf("Download() repeat error = %v", err)
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}
}

func TestManager_Download_BadStatusLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	src := RemoteSource{URL: server.URL + "/missing.pdf", Name: "missing.pdf"}
	if err := m.Download(context.Background(), "networks", src); err == nil {
		t.Fatal("Download() expected error for 404")
	}

	if _, err := os.Stat(filepath.Join(m.Root(), "networks", "missing.pdf")); !os.IsNotExist(err) {
		t.Error("failed download left a file behind")
	}
}

func TestManager_DownloadAll_SkipsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.pdf" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	sources := []RemoteSource{
		{URL: server.URL + "/good.pdf", Name: "good.pdf"},
		{URL: server.URL + "/bad.pdf", Name: "bad.pdf"},
		{URL: server.URL + "/also_good.pdf", Name: "also_good.pdf"},
	}
	succeeded, err := m.DownloadAll(context.Background(), "networks", sources)
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if succeeded != 2 {
		t.Errorf("DownloadAll() succeeded = %d, want 2", succeeded)
	}
}
