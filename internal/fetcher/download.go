package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"studyrag/internal/contextutil"
)

// RemoteSource is a downloadable document: a shared link plus the file name
// to store it under within a collection.
type RemoteSource struct {
	URL  string
	Name string
}

// Download fetches a remote document into the given collection directory.
// Google Drive share links are rewritten to direct-download form first.
// Existing files are not re-downloaded.
func (m *Manager) Download(ctx context.Context, collection string, src RemoteSource) error {
	logger := contextutil.LoggerFromContext(ctx)

	dir := filepath.Join(m.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create collection dir %s: %w", dir, err)
	}

	dest := filepath.Join(dir, src.Name)
	if _, err := os.Stat(dest); err == nil {
		logger.DebugContext(ctx, "skipping existing file", "collection", collection, "name", src.Name)
		return nil
	}

	downloadURL, err := DirectDownloadURL(src.URL)
	if err != nil {
		return fmt.Errorf("failed to resolve download url for %s: %w", src.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", src.Name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status %d downloading %s", resp.StatusCode, src.Name)
	}

	// Write to a temp file first so a failed download never leaves a
	// partial document for the ingestion scan to pick up.
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", src.Name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", src.Name, err)
	}

	logger.InfoContext(ctx, "downloaded document", "collection", collection, "name", src.Name)
	return nil
}

// DownloadAll fetches a set of remote documents into a collection. Failures
// are logged and counted; one bad link does not stop the rest.
func (m *Manager) DownloadAll(ctx context.Context, collection string, sources []RemoteSource) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var succeeded int
	for _, src := range sources {
		select {
		case <-ctx.Done():
			return succeeded, ctx.Err()
		default:
		}

		if err := m.Download(ctx, collection, src); err != nil {
			logger.ErrorContext(ctx, "failed to download document", "collection", collection, "name", src.Name, "error", err)
			continue
		}
		succeeded++
	}
	return succeeded, nil
}

// DirectDownloadURL converts a Google Drive share link of the form
// https://drive.google.com/file/d/<id>/view into its direct-download
// endpoint. Other URLs pass through unchanged.
func DirectDownloadURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	if u.Host != "drive.google.com" {
		return raw, nil
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// file/d/<id>/view
	if len(parts) >= 3 && parts[0] == "file" && parts[1] == "d" {
		return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", parts[2]), nil
	}
	if id := u.Query().Get("id"); id != "" {
		return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", id), nil
	}

	return "", fmt.Errorf("unrecognized drive link: %s", raw)
}
