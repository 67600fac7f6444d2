package target

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/promptstrike/promptstrike/pkg/defaults"
	"github.com/promptstrike/promptstrike/pkg/httpclient"
	"github.com/promptstrike/promptstrike/pkg/iohelper"
	"github.com/promptstrike/promptstrike/pkg/jsonutil"
	"github.com/promptstrike/promptstrike/pkg/payloads"
	"github.com/promptstrike/promptstrike/pkg/retry"
)

// Result is the record of one payload delivery, kept verbatim for
// detection and evidence.
type Result struct {
	RequestMethod  string
	RequestURL     string
	RequestHeaders map[string]string
	RequestBody    string

	StatusCode   int
	ResponseBody string
	RawBody      string
	BodyHash     uint64

	Duration time.Duration
	DryRun   bool
}

// Options tune a single invocation beyond the target config.
type Options struct {
	// Attempts is the total delivery attempts including the first; zero
	// means the default.
	Attempts int
	DryRun   bool
}

// Invoker delivers payloads to a configured target. Any HTTP response,
// whatever its status code, is a successful invocation; only transport
// failures are retried.
type Invoker struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.log = l
		}
	}
}

// WithHTTPClient overrides the shared HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(i *Invoker) {
		if c != nil {
			i.client = c
		}
	}
}

// New creates an Invoker for the given target. Zero-value config fields
// are filled with defaults.
func New(cfg Config, opts ...Option) *Invoker {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.BodyTemplate == "" {
		cfg.BodyTemplate = DefaultBodyTemplate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	inv := &Invoker{
		cfg:    cfg,
		client: httpclient.Default(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke sends one payload to the target and returns the full
// request/response record. On delivery failure the record is returned
// alongside the error, carrying the request that was actually sent. In
// dry-run mode no network I/O happens and a synthetic response is
// returned.
func (i *Invoker) Invoke(ctx context.Context, p payloads.Payload, opts Options) (*Result, error) {
	body := strings.ReplaceAll(i.cfg.BodyTemplate, payloads.Placeholder, escapeJSON(p.Content))
	headers := i.buildHeaders()

	res := &Result{
		RequestMethod:  i.cfg.Method,
		RequestURL:     i.cfg.BaseURL,
		RequestHeaders: headers,
		RequestBody:    body,
	}

	if opts.DryRun {
		res.DryRun = true
		res.ResponseBody = fmt.Sprintf("[DRY RUN] Would send payload: %s", p.Name)
		res.RawBody = res.ResponseBody
		res.StatusCode = http.StatusOK
		return res, nil
	}

	if err := i.cfg.Validate(); err != nil {
		return res, err
	}

	attempts := opts.Attempts
	if attempts < 1 {
		attempts = defaults.Retries
	}

	err := retry.Do(ctx, retry.Config{
		Attempts:  attempts,
		BaseDelay: defaults.RetryBaseDelay,
		Strategy:  retry.Linear,
	}, func(attempt int) error {
		start := time.Now()
		status, raw, err := i.send(ctx, body, headers)
		res.Duration = time.Since(start)
		if err != nil {
			i.log.Debug("target request failed",
				"payload", p.ID,
				"attempt", attempt,
				"error", err)
			return err
		}
		res.StatusCode = status
		res.ResponseBody = extractResponse(raw, i.cfg.ResponseField)
		res.RawBody = string(raw)
		res.BodyHash = murmur3.Sum64(raw)
		return nil
	})
	if err != nil {
		// The request record survives so failed deliveries can still be
		// persisted with what was actually sent.
		return res, fmt.Errorf("invoke payload %s: %w", p.ID, err)
	}
	return res, nil
}

func (i *Invoker) send(ctx context.Context, body string, headers map[string]string) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, i.cfg.Method, i.cfg.BaseURL, bytes.NewReader([]byte(body)))
	if err != nil {
		return 0, nil, retry.Stop(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer iohelper.DrainAndClose(resp.Body)

	raw, err := iohelper.ReadBody(resp.Body, defaults.MaxResponseBytes)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func (i *Invoker) buildHeaders() map[string]string {
	headers := make(map[string]string, len(i.cfg.Headers)+2)
	headers["Content-Type"] = defaults.ContentTypeJSON
	for k, v := range i.cfg.Headers {
		headers[k] = v
	}
	if i.cfg.APIKey != "" {
		if _, ok := headers["Authorization"]; !ok {
			headers["Authorization"] = "Bearer " + i.cfg.APIKey
		}
	}
	return headers
}

// extractResponse pulls the configured dot-path field out of a JSON body.
// Anything that does not resolve falls back to the raw body so evidence
// is never lost.
func extractResponse(raw []byte, field string) string {
	if field == "" {
		return string(raw)
	}
	var doc any
	if err := jsonutil.Unmarshal(raw, &doc); err != nil {
		return string(raw)
	}
	cur := doc
	for _, part := range strings.Split(field, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return string(raw)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return string(raw)
			}
			cur = node[idx]
		default:
			return string(raw)
		}
	}
	switch v := cur.(type) {
	case string:
		return v
	default:
		out, err := jsonutil.Marshal(cur)
		if err != nil {
			return string(raw)
		}
		return string(out)
	}
}

// escapeJSON makes payload content safe for substitution inside a JSON
// string literal in the body template.
func escapeJSON(s string) string {
	out, err := jsonutil.Marshal(s)
	if err != nil {
		return s
	}
	return string(out[1 : len(out)-1])
}
