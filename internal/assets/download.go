package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ai-models/panguweather/internal/ctxlog"
)

// Downloader fetches model files that are absent from an assets directory.
type Downloader struct {
	// Client defaults to an http.Client without timeout; model files are
	// large.
	Client *http.Client

	// URL is a template containing "{file}". Defaults to DefaultURL.
	URL string

	// Checksums optionally maps file names to expected hex SHA-256
	// digests. A mismatching download is discarded.
	Checksums map[string]string
}

// URLFor expands the URL template for one file.
func (d *Downloader) URLFor(file string) string {
	tmpl := d.URL
	if tmpl == "" {
		tmpl = DefaultURL
	}
	return strings.ReplaceAll(tmpl, "{file}", file)
}

// Download fetches every missing model file into dir and returns the
// resolved paths.
func (d *Downloader) Download(ctx context.Context, dir string) (Paths, error) {
	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("failed to create assets directory: %w", err)
	}

	missing, err := Missing(dir)
	if err != nil {
		return Paths{}, err
	}
	if len(missing) == 0 {
		logger.Debug("All assets present.", "dir", dir)
	}

	for _, name := range missing {
		if err := d.fetch(ctx, name, filepath.Join(dir, name)); err != nil {
			return Paths{}, err
		}
	}

	return Resolve(dir)
}

func (d *Downloader) fetch(ctx context.Context, name, path string) error {
	logger := ctxlog.FromContext(ctx)
	url := d.URLFor(name)
	start := time.Now()
	logger.Info("Downloading asset.", "url", url, "path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to download %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if err := validateChecksum(name, sum, d.Checksums[name]); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to install %s: %w", path, err)
	}

	logger.Info("Downloaded asset.",
		"path", path,
		"bytes", n,
		"sha256", sum,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
