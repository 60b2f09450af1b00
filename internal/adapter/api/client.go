// Package api talks to the remote backup API over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/semmidev/phylaxctl/internal/domain"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultCapabilitiesTTL = time.Minute
	maxErrorBody           = 64 << 10
)

var errEmptyBody = errors.New("empty response body")

type Options struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	CapabilitiesTTL time.Duration
	HTTPClient      *http.Client
}

// Client implements the connection, settings and backup ports.
type Client struct {
	baseURL      *url.URL
	token        string
	http         *http.Client
	capabilities *cache.Cache
	capTTL       time.Duration
}

var (
	_ domain.ConnectionAPI = (*Client)(nil)
	_ domain.SettingsAPI   = (*Client)(nil)
	_ domain.BackupAPI     = (*Client)(nil)
)

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url scheme %q", base.Scheme)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	ttl := opts.CapabilitiesTTL
	if ttl <= 0 {
		ttl = defaultCapabilitiesTTL
	}

	return &Client{
		baseURL:      base,
		token:        opts.Token,
		http:         httpClient,
		capabilities: cache.New(ttl, 2*ttl),
		capTTL:       ttl,
	}, nil
}

// do sends one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		remote := &domain.RemoteError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrNotFound, remote)
		}
		return fmt.Errorf("%s %s: %w", method, path, remote)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("decode %s %s: %w", method, path, errEmptyBody)
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts a server message from an error body.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
