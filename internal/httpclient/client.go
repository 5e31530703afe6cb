// Package httpclient is the shared HTTP fabric: one request primitive
// with timeouts, retries with exponential backoff, error-kind
// classification, and cache integration. Both the NixOS search client
// and the documentation loaders go through it.
package httpclient

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"mcp-nixos/internal/cache"
)

// Kind classifies a request failure. Classification is observable:
// callers branch on it and tests assert it.
type Kind string

const (
	KindBadRequest Kind = "bad_request"
	KindAuth       Kind = "auth"
	KindServer     Kind = "server"
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindTransport  Kind = "transport"
)

// Error is the typed failure returned by Do. Message is a single human
// sentence; upstream error payloads are flattened into it.
type Error struct {
	Kind     Kind
	Message  string
	Attempts int
}

func (e *Error) Error() string { return e.Message }

// Response is a successful result plus request metadata.
type Response struct {
	Body       []byte
	StatusCode int
	FromCache  bool
	Attempts   int
}

// Options tune a single request.
type Options struct {
	// BasicAuthUser/Password enable HTTP Basic auth when non-empty.
	BasicAuthUser     string
	BasicAuthPassword string

	// MemoryCache, when set, is consulted before the network and
	// populated on success. The backend is read-only, so POSTed search
	// bodies are cacheable too; the key covers method, URL and body.
	MemoryCache *cache.Memory

	// HTMLCache, when set, caches GET bodies on disk keyed by URL.
	HTMLCache *cache.Filesystem

	// NoCache bypasses both caches for this request.
	NoCache bool

	// ReadTimeout overrides the client-wide read timeout when positive.
	ReadTimeout time.Duration
}

// Config tunes a Client.
type Config struct {
	MaxRetries     int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client wraps a retrying HTTP client with the error taxonomy of this
// package. Safe for concurrent use.
type Client struct {
	rc     *retryablehttp.Client
	cfg    Config
	logger *slog.Logger
}

// attemptKey carries a per-request attempt counter through the request
// context so the retry hooks can report how many attempts ran.
type attemptKey struct{}

// New builds a Client. Retries: server errors and connection failures
// are retried up to MaxRetries; timeouts, bad requests and auth failures
// short-circuit; unexpected transport errors are retried once. Backoff
// is RetryDelay * 2^attempt.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient = &http.Client{
		Timeout: cfg.ReadTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.ConnectTimeout,
			}).DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
		},
	}
	rc.Backoff = func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return cfg.RetryDelay * (1 << attemptNum)
	}
	rc.CheckRetry = checkRetry
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if p, ok := req.Context().Value(attemptKey{}).(*int32); ok {
			atomic.StoreInt32(p, int32(attempt))
		}
	}

	return &Client{rc: rc, cfg: cfg, logger: logger}
}

// checkRetry implements the taxonomy's retry policy.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		switch classifyTransport(err) {
		case KindTimeout:
			// Surface quickly rather than burning the full retry budget.
			return false, err
		case KindConnection:
			return true, nil
		default:
			// Unexpected transport fault: one retry, then give up.
			if p, ok := ctx.Value(attemptKey{}).(*int32); ok && atomic.LoadInt32(p) >= 1 {
				return false, err
			}
			return true, nil
		}
	}
	switch {
	case resp.StatusCode >= 500:
		return true, nil
	default:
		return false, nil
	}
}

// classifyTransport maps a pre-response error to a Kind.
func classifyTransport(err error) Kind {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	return KindTransport
}

// cacheKey covers method, URL and body so distinct search payloads
// against the same endpoint do not collide.
func cacheKey(method, url string, body []byte) string {
	sum := md5.Sum(append([]byte(method+" "+url+"\n"), body...))
	return hex.EncodeToString(sum[:])
}

// flattenUpstreamError turns an error response body into one sentence,
// surfacing the Elasticsearch reason when present.
func flattenUpstreamError(status int, body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		var obj struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(payload.Error, &obj); err == nil && obj.Reason != "" {
			return fmt.Sprintf("HTTP %d: %s", status, obj.Reason)
		}
		var msg string
		if err := json.Unmarshal(payload.Error, &msg); err == nil && msg != "" {
			return fmt.Sprintf("HTTP %d: %s", status, msg)
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	return fmt.Sprintf("HTTP %d: %s", status, text)
}

// Do performs one request: cache lookup, transport with retries,
// classification, and cache insert on success.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, opts Options) (*Response, error) {
	key := cacheKey(method, url, body)

	if !opts.NoCache {
		if opts.MemoryCache != nil {
			if v, ok := opts.MemoryCache.Get(key); ok {
				if data, ok := v.([]byte); ok {
					return &Response{Body: data, StatusCode: http.StatusOK, FromCache: true}, nil
				}
			}
		}
		if opts.HTMLCache != nil && method == http.MethodGet {
			if html, ok := opts.HTMLCache.GetHTML(url); ok {
				return &Response{Body: []byte(html), StatusCode: http.StatusOK, FromCache: true}, nil
			}
		}
	}

	var attempt int32
	ctx = context.WithValue(ctx, attemptKey{}, &attempt)
	if opts.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ReadTimeout)
		defer cancel()
	}

	var rawBody any
	if len(body) > 0 {
		rawBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, rawBody)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: fmt.Sprintf("build request: %v", err), Attempts: 0}
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "mcp-nixos/1.0")
	if opts.BasicAuthUser != "" {
		req.SetBasicAuth(opts.BasicAuthUser, opts.BasicAuthPassword)
	}

	resp, err := c.rc.Do(req)
	attempts := int(atomic.LoadInt32(&attempt)) + 1
	if err != nil {
		kind := classifyTransport(err)
		c.logger.Debug("request failed", "url", url, "kind", string(kind), "attempts", attempts, "error", err)
		return nil, &Error{Kind: kind, Message: singleSentence(err), Attempts: attempts}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		kind := classifyTransport(err)
		return nil, &Error{Kind: kind, Message: fmt.Sprintf("read response: %v", err), Attempts: attempts}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !opts.NoCache {
			if opts.MemoryCache != nil {
				opts.MemoryCache.Set(key, data)
			}
			if opts.HTMLCache != nil && method == http.MethodGet {
				if err := opts.HTMLCache.SetHTML(url, string(data)); err != nil {
					c.logger.Warn("html cache write failed", "url", url, "error", err)
				}
			}
		}
		return &Response{Body: data, StatusCode: resp.StatusCode, Attempts: attempts}, nil
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &Error{Kind: KindBadRequest, Message: flattenUpstreamError(resp.StatusCode, data), Attempts: attempts}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: KindAuth, Message: flattenUpstreamError(resp.StatusCode, data), Attempts: attempts}
	case resp.StatusCode >= 500:
		return nil, &Error{Kind: KindServer, Message: flattenUpstreamError(resp.StatusCode, data), Attempts: attempts}
	default:
		return nil, &Error{Kind: KindTransport, Message: flattenUpstreamError(resp.StatusCode, data), Attempts: attempts}
	}
}

// singleSentence flattens a wrapped transport error chain into one line.
func singleSentence(err error) string {
	msg := err.Error()
	msg = strings.ReplaceAll(msg, "\n", " ")
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
