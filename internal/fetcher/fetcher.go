package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/teamcutter/apkx/internal/domain"
)

type HTTPFetcher struct {
	client    *http.Client
	outputDir string
	quiet     bool
}

func New(outputDir string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		outputDir: outputDir,
	}
}

// Quiet disables the download progress bar.
func (f *HTTPFetcher) Quiet() *HTTPFetcher {
	f.quiet = true
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src domain.Source) domain.FetchResult {
	filename := filenameFromURL(src.Location)
	dst := filepath.Join(f.outputDir, ".partial", filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
	if err != nil {
		return domain.FetchResult{Source: src.Location, Error: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.FetchResult{Source: src.Location, Error: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FetchResult{
			Source: src.Location,
			Error:  fmt.Errorf("unexpected status: %d", resp.StatusCode),
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return domain.FetchResult{Source: src.Location, Error: err}
	}

	file, err := os.Create(dst)
	if err != nil {
		return domain.FetchResult{Source: src.Location, Error: err}
	}
	defer file.Close()

	desc := fmt.Sprintf("Downloading %s", filename)
	var bar *progressbar.ProgressBar
	if f.quiet {
		bar = progressbar.DefaultBytesSilent(resp.ContentLength, desc)
	} else {
		bar = progressbar.DefaultBytes(resp.ContentLength, desc)
	}

	if _, err := io.Copy(io.MultiWriter(file, bar), resp.Body); err != nil {
		os.Remove(dst)
		return domain.FetchResult{Source: src.Location, Error: err}
	}

	if src.SHA256 != "" {
		actual, err := Checksum(dst)
		if err != nil {
			return domain.FetchResult{Source: src.Location, Error: err}
		}

		if !strings.EqualFold(actual, src.SHA256) {
			os.Remove(dst)
			return domain.FetchResult{
				Source: src.Location,
				Error:  fmt.Errorf("checksum mismatch: expected %s, got %s", src.SHA256, actual),
			}
		}
	}

	return domain.FetchResult{Source: src.Location, Path: dst}
}

// Checksum returns the hex SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func filenameFromURL(rawURL string) string {
	u := path.Base(strings.SplitN(rawURL, "?", 2)[0])
	lower := strings.ToLower(u)
	for _, ext := range domain.Extensions() {
		if strings.HasSuffix(lower, ext) {
			return u
		}
	}
	return u + ".apk"
}
