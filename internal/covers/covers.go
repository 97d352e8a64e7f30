// Package covers downloads book cover images and normalizes them to a
// bounded width for local storage.
package covers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

const defaultMaxWidth = 600

// Downloader fetches cover images into a local directory.
type Downloader struct {
	outputDir  string
	maxWidth   int
	httpClient *http.Client
	clientOnce sync.Once
}

// NewDownloader creates a cover downloader writing into outputDir.
func NewDownloader(outputDir string) *Downloader {
	return &Downloader{outputDir: outputDir, maxWidth: defaultMaxWidth}
}

func (d *Downloader) getHTTPClient() *http.Client {
	d.clientOnce.Do(func() {
		if d.httpClient == nil {
			d.httpClient = &http.Client{Timeout: 30 * time.Second}
		}
	})
	return d.httpClient
}

// CoverPath returns where the cover for an ISBN is stored.
func (d *Downloader) CoverPath(isbn string) string {
	return filepath.Join(d.outputDir, isbn+".jpg")
}

// Download fetches the cover at imageURL, resizes it to the configured
// width and saves it as {isbn}.jpg. An existing file is kept unless
// force is set. Returns the saved path, or "" when imageURL is empty.
func (d *Downloader) Download(ctx context.Context, imageURL, isbn string, force bool) (string, error) {
	if imageURL == "" || isbn == "" {
		return "", nil
	}

	savePath := d.CoverPath(isbn)
	if !force {
		if _, err := os.Stat(savePath); err == nil {
			slog.Debug("Cover already exists, skipping download", "path", savePath)
			return savePath, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create cover request: %w", err)
	}

	resp, err := d.getHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d downloading cover from %s", resp.StatusCode, imageURL)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode cover image: %w", err)
	}

	if img.Bounds().Dx() > d.maxWidth {
		img = imaging.Resize(img, d.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cover directory: %w", err)
	}

	if err := imaging.Save(img, savePath, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to save cover: %w", err)
	}

	slog.Info("Downloaded cover", "path", savePath)
	return savePath, nil
}
