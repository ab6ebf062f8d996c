// Package fetch retrieves lesson descriptors, marks streams, audio and
// manifests over HTTP, or from the local filesystem for file:// URLs and
// plain paths.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is matched by a StatusError carrying a 404.
	ErrNotFound = errors.New("resource not found")

	// ErrTooLarge indicates a response exceeded the configured size limit.
	ErrTooLarge = errors.New("response too large")
)

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP status %d", e.URL, e.Code)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Config controls a Client.
type Config struct {
	Timeout           time.Duration
	RequestsPerMinute int
	MaxBytes          int64
	UserAgent         string
}

// DefaultConfig returns the fetch settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		RequestsPerMinute: 120,
		MaxBytes:          200 * 1024 * 1024,
		UserAgent:         "comprendo-player",
	}
}

// Client fetches resources. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	fs      afero.Fs
	limiter *rate.Limiter
	config  Config
	logger  *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithFs sets the filesystem used for file:// URLs and plain paths.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) { c.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client.
func New(config Config, opts ...Option) *Client {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultConfig().MaxBytes
	}

	c := &Client{
		http:    &http.Client{Timeout: config.Timeout},
		fs:      afero.NewOsFs(),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 4),
		config:  config,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the body of the resource at rawURL.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if path, ok := localPath(rawURL); ok {
		data, err := afero.ReadFile(c.fs, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return data, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	if int64(len(body)) > c.config.MaxBytes {
		return nil, fmt.Errorf("GET %s: %w", rawURL, ErrTooLarge)
	}

	c.logger.Debug("Fetched resource", "url", rawURL, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

// GetJSON fetches rawURL and decodes its body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode JSON from %s: %w", rawURL, err)
	}
	return nil
}

// HTTPToHTTPS rewrites an http:// URL to its https:// equivalent. Other
// strings are returned unchanged. Legacy lesson content still points at
// http:// hosts.
func HTTPToHTTPS(rawURL string) string {
	const insecure = "http://"
	if len(rawURL) >= len(insecure) && strings.EqualFold(rawURL[:len(insecure)], insecure) {
		return "https://" + rawURL[len(insecure):]
	}
	return rawURL
}

// IsLocal reports whether rawURL refers to the local filesystem.
func IsLocal(rawURL string) bool {
	_, ok := localPath(rawURL)
	return ok
}

// LocalPath returns the filesystem path for a file:// URL or plain path.
func LocalPath(rawURL string) (string, bool) {
	return localPath(rawURL)
}

func localPath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, true
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return u.Path, true
	case "":
		return rawURL, true
	default:
		return "", false
	}
}
