package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var downloadClient = &http.Client{Timeout: 10 * time.Minute}

// DownloadFile fetches a remote media file into dir and returns the local
// path. File names get a unique suffix so concurrent clips never collide.
func DownloadFile(ctx context.Context, rawURL, dir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid media url %q: %w", rawURL, err)
	}

	base := path.Base(parsed.Path)
	ext := path.Ext(base)
	if ext == "" {
		ext = ".mp4"
	}
	name := fmt.Sprintf("%s_%s%s", base[:len(base)-len(path.Ext(base))], uuid.New().String()[:8], ext)
	savePath := filepath.Join(dir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", rawURL, resp.StatusCode)
	}

	out, err := os.Create(savePath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(savePath)
		return "", fmt.Errorf("failed to save %s: %w", rawURL, err)
	}
	return savePath, nil
}

// ExtensionFromURL extracts the lowercase media extension from a URL,
// ignoring query parameters.
func ExtensionFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(parsed.Path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}
