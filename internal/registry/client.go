package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultBaseURL = "https://pypi.org"

// Client fetches project metadata documents and release archives.
// Implemented by HTTPClient; tests substitute an httptest-backed instance.
type Client interface {
	ProjectJSON(ctx context.Context, name string) ([]byte, error)
	DownloadFile(ctx context.Context, url, dest string) error
}

// HTTPClient talks to the real registry over HTTP.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient creates a client against the public registry with the given
// request timeout. A zero timeout means no limit.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// ProjectJSON fetches the metadata document for one project.
func (c *HTTPClient) ProjectJSON(ctx context.Context, name string) ([]byte, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", c.BaseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry: unexpected status %d for %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// DownloadFile streams url into dest. The write goes through a sibling
// temp file claimed with O_EXCL and finishes with a rename, so concurrent
// workers racing on the same archive cannot interleave partial writes and
// a crash never leaves a truncated file at the final path. A leftover
// reservation whose archive never arrived is reclaimed, not trusted.
func (c *HTTPClient) DownloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry: unexpected status %d for %s", resp.StatusCode, url)
	}

	part := dest + ".part"
	f, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		// A reservation already exists. If the archive it guarded made it
		// to dest the work is done; otherwise it is an orphan from an
		// interrupted run (a killed process never removes its .part) and
		// gets reclaimed so reruns can make progress.
		if _, statErr := os.Stat(dest); statErr == nil {
			return nil
		}
		if rmErr := os.Remove(part); rmErr != nil && !os.IsNotExist(rmErr) {
			return rmErr
		}
		f, err = os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			return fmt.Errorf("registry: download reservation for %s contended", dest)
		}
	}
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(part)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return err
	}
	return os.Rename(part, dest)
}
