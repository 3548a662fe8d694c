// Package transport fetches files from remote and file: repositories.
//
// A [Client] speaks plain HTTP(S) through the proxy chosen for each request,
// reads file: repositories straight from disk, retries transient failures
// and verifies SHA-1 checksums according to the repository's checksum
// policy. In offline mode only file: repositories are reachable.
package transport

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	cperrors "github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/observability"
	"github.com/matzehuels/classpath/pkg/proxy"
	"github.com/matzehuels/classpath/pkg/repository"
)

const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultRequestTimeout  = 30 * time.Minute
	DefaultMaxConnsPerHost = 8
	DefaultAttempts        = 3
	DefaultRetryDelay      = time.Second
)

var (
	// ErrNotFound is returned when the repository does not have the file.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrOffline is returned when a remote repository is contacted in offline mode.
	ErrOffline = errors.New("repository not reachable in offline mode")

	// ErrChecksum is returned when a file does not match its published checksum
	// and the checksum policy is fail.
	ErrChecksum = errors.New("checksum mismatch")
)

// Options configure a [Client]. Zero values select the defaults.
type Options struct {
	ConnectTimeout  time.Duration
	RequestTimeout  time.Duration
	MaxConnsPerHost int
	Offline         bool
	Attempts        int
	RetryDelay      time.Duration
	UserAgent       string
	Selector        *proxy.Selector // nil means no proxies
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.MaxConnsPerHost <= 0 {
		o.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.UserAgent == "" {
		o.UserAgent = "classpath"
	}
	return o
}

// Client fetches repository files. It is safe for concurrent use.
type Client struct {
	http   *http.Client
	opts   Options
	logger *log.Logger
}

// New creates a Client.
func New(opts Options, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	opts = opts.withDefaults()
	return &Client{
		http:   NewHTTPClient(opts),
		opts:   opts,
		logger: logger,
	}
}

// NewHTTPClient builds the HTTP client described by opts: connect timeout on
// the dialer, request timeout on the client, a per-host connection cap and
// the selector's proxies.
func NewHTTPClient(opts Options) *http.Client {
	opts = opts.withDefaults()
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = opts.ConnectTimeout
	tr.MaxConnsPerHost = opts.MaxConnsPerHost
	tr.MaxIdleConnsPerHost = opts.MaxConnsPerHost
	tr.Proxy = nil
	if opts.Selector != nil {
		tr.Proxy = opts.Selector.ProxyFunc()
	}
	return &http.Client{Transport: tr, Timeout: opts.RequestTimeout}
}

// Offline reports whether remote repositories are disabled.
func (c *Client) Offline() bool { return c.opts.Offline }

// Get fetches a small file such as metadata or a POM into memory and
// verifies it against its checksum.
func (c *Client) Get(ctx context.Context, repo repository.Repository, path string, policy repository.ChecksumPolicy) ([]byte, error) {
	var buf bytes.Buffer
	err := c.withRetry(ctx, repo, path, func() error {
		buf.Reset()
		return c.fetch(ctx, repo, path, policy, &buf)
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Download fetches path into the file dst, truncating it on every attempt,
// and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, repo repository.Repository, path string, policy repository.ChecksumPolicy, dst string) (int64, error) {
	hooks := observability.Resolve()
	hooks.OnDownloadStart(ctx, repo.ID, path)
	start := time.Now()

	var size int64
	err := c.withRetry(ctx, repo, path, func() error {
		f, err := os.Create(dst)
		if err != nil {
			return err
		}
		cw := &countingWriter{w: f}
		err = c.fetch(ctx, repo, path, policy, cw)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		size = cw.n
		return err
	})
	hooks.OnDownloadComplete(ctx, repo.ID, path, size, time.Since(start), err)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("downloaded", "repo", repo.ID, "path", path, "size", size)
	return size, nil
}

func (c *Client) fetch(ctx context.Context, repo repository.Repository, path string, policy repository.ChecksumPolicy, w io.Writer) error {
	if repo.IsFile() {
		return c.copyFile(ctx, repo, path, w)
	}
	if c.opts.Offline {
		return fmt.Errorf("%w: %s", ErrOffline, repo)
	}

	sum := sha1.New()
	if err := c.copyHTTP(ctx, repo.Join(path), io.MultiWriter(w, sum)); err != nil {
		return err
	}
	if policy == repository.ChecksumIgnore || policy == "" {
		return nil
	}
	return c.verify(ctx, repo, path, policy, sum)
}

func (c *Client) verify(ctx context.Context, repo repository.Repository, path string, policy repository.ChecksumPolicy, sum hash.Hash) error {
	var expected bytes.Buffer
	if err := c.copyHTTP(ctx, repo.Join(path+".sha1"), &expected); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Debug("no checksum published", "repo", repo.ID, "path", path)
			return nil
		}
		return err
	}

	want := strings.ToLower(strings.TrimSpace(expected.String()))
	if i := strings.IndexAny(want, " \t"); i >= 0 {
		want = want[:i]
	}
	got := hex.EncodeToString(sum.Sum(nil))
	if want == got {
		return nil
	}

	if policy == repository.ChecksumFail {
		return cperrors.Wrap(cperrors.ErrCodeChecksum, ErrChecksum, "%s from %s: expected %s, got %s", path, repo.ID, want, got)
	}
	c.logger.Warn("checksum mismatch", "repo", repo.ID, "path", path, "expected", want, "actual", got)
	return nil
}

func (c *Client) copyFile(ctx context.Context, repo repository.Repository, path string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(repo.Dir(), filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s in %s", ErrNotFound, path, repo.ID)
	}
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (c *Client) copyHTTP(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	hooks := observability.HTTP()
	host, p := requestTarget(rawURL)
	hooks.OnRequest(ctx, http.MethodGet, host, p)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, p, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, http.MethodGet, host, p, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		return fmt.Errorf("%w: %s", err, rawURL)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	return nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return ErrNotFound
	case code >= 500 || code == http.StatusTooManyRequests:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

func requestTarget(rawURL string) (host, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}
	return u.Host, u.Path
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
