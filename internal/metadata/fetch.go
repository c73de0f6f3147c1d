package metadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/evidenceledger/ledgergateway/internal/errl"
)

// Resource is the content behind a locator
type Resource struct {
	Content     []byte
	ContentType string
}

// Fetcher reads the resource a locator points to. http and https locators
// are fetched with retries; file locators are read below a configured root.
type Fetcher struct {
	client     *http.Client
	maxBytes   int64
	fileRoot   string
	newBackOff func() backoff.BackOff
}

const defaultMaxRetries = 3

func NewFetcher(client *http.Client, maxBytes int64, fileRoot string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &Fetcher{
		client:   client,
		maxBytes: maxBytes,
		fileRoot: fileRoot,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = client.Timeout
			return backoff.WithMaxRetries(b, defaultMaxRetries)
		},
	}
}

func (f *Fetcher) Fetch(ctx context.Context, locator string) (*Resource, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, errl.Errorf("invalid locator %q: %w", locator, err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	case "file":
		return f.readFile(u.Host + u.Path)
	default:
		return nil, errl.Errorf("unsupported locator scheme %q", u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, locator string) (*Resource, error) {
	var res *Resource

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("server returned %s", resp.Status))
		}

		content, err := f.readLimited(resp.Body)
		if err != nil {
			return backoff.Permanent(err)
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(content)
		}
		res = &Resource{Content: content, ContentType: contentType}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Debug("resource fetch failed, retrying", "locator", locator, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(f.newBackOff(), ctx), notify); err != nil {
		return nil, errl.Errorf("fetching %s: %w", locator, err)
	}
	return res, nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > f.maxBytes {
		return nil, fmt.Errorf("resource exceeds %d bytes", f.maxBytes)
	}
	return content, nil
}

func (f *Fetcher) readFile(name string) (*Resource, error) {
	if f.fileRoot == "" {
		return nil, errl.Errorf("file locators are disabled")
	}

	// rooting the name first keeps ".." from leaving fileRoot
	path := filepath.Join(f.fileRoot, filepath.Clean("/"+name))

	file, err := os.Open(path)
	if err != nil {
		return nil, errl.Error(err)
	}
	defer file.Close()

	content, err := f.readLimited(file)
	if err != nil {
		return nil, errl.Errorf("reading %s: %w", path, err)
	}
	return &Resource{Content: content, ContentType: http.DetectContentType(content)}, nil
}
