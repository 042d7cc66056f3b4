package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout is the hard per-probe timeout.
const DefaultTimeout = 5 * time.Second

// keep-alives stay off so every probe pays for a fresh connection the same
// way a cold browser fetch does
const defaultMaxConnsPerHost = 10

// Outcome is the result of a single probe: either an elapsed time in
// milliseconds or a failure. There are no partial states.
type Outcome struct {
	// LatencyMs is the elapsed wall-clock time. Only meaningful when OK is true.
	LatencyMs float64
	// OK reports whether the probe completed without error.
	OK bool
}

// Success returns a successful [Outcome] with the given latency.
func Success(latencyMs float64) Outcome {
	if latencyMs < 0 {
		latencyMs = 0
	}
	return Outcome{LatencyMs: latencyMs, OK: true}
}

// Failure returns a failed [Outcome].
func Failure() Outcome {
	return Outcome{}
}

// Func is the signature shared by [Executor.Probe] and test doubles.
type Func func(ctx context.Context, host string) Outcome

// Executor issues timed GET requests to targets.
//
// Executor is safe for concurrent use. The timeout is applied per request
// through the context rather than on the http.Client.
type Executor struct {
	httpClient *http.Client
	timeout    time.Duration
	urlFor     func(host string) string
}

// Option configures an [Executor].
type Option func(*Executor)

// WithTimeout overrides the hard per-probe timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithHTTPClient makes the executor use a copy of c. Redirects are still
// never followed.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		if c == nil {
			return
		}
		cp := *c
		cp.CheckRedirect = noRedirect
		cp.Timeout = 0
		e.httpClient = &cp
	}
}

// WithURLFormat replaces the default https://{host}/ URL builder.
func WithURLFormat(fn func(host string) string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.urlFor = fn
		}
	}
}

// NewExecutor creates an [Executor] with its own transport. Keep-alives are
// disabled, so connections are never reused between probes.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		httpClient: &http.Client{
			CheckRedirect: noRedirect,
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				MaxConnsPerHost:   defaultMaxConnsPerHost,
				DisableKeepAlives: true,
			},
		},
		timeout: DefaultTimeout,
		urlFor:  TargetURL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TargetURL returns the probe URL for host.
func TargetURL(host string) string {
	return fmt.Sprintf("https://%s/", host)
}

// Timeout returns the configured per-probe timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Probe performs one timed GET against host.
//
// Latency is measured from just before the request is sent until response
// headers arrive. The body is never read. Any error yields [Failure].
func (e *Executor) Probe(ctx context.Context, host string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.urlFor(host), nil)
	if err != nil {
		return Failure()
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Failure()
	}
	_ = resp.Body.Close()

	return Success(float64(elapsed) / float64(time.Millisecond))
}

// Close closes idle connections held by the executor's client. The default
// transport keeps none, so this only matters for a client supplied through
// [WithHTTPClient]. Safe to call multiple times and on a nil receiver.
func (e *Executor) Close() {
	if e == nil || e.httpClient == nil {
		return
	}
	e.httpClient.CloseIdleConnections()
}

// noRedirect stops at the first response, which is all an opaque fetch sees.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}
