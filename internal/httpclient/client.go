package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asynchttp/internal/auth"
	"asynchttp/internal/reactor"
	"asynchttp/internal/registry"
)

// RequestIDHeader is set on every executed request that lacks it.
const RequestIDHeader = "X-Request-ID"

const shutdownTimeout = 5 * time.Second

var errClientClosed = errors.New("client closed")

// State is the lifecycle state of a Client.
type State int32

const (
	StateCreated State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PoolStats is a point-in-time view of a Client's pool.
type PoolStats struct {
	MaxTotal    int `json:"max_total"`
	MaxPerRoute int `json:"max_per_route"`
	Leased      int `json:"leased"`
	Pending     int `json:"pending"`
	IOThreads   int `json:"io_threads"`
}

// Client is a started, pooled HTTP client. It is safe for concurrent use.
type Client struct {
	cfg      ClientConfig
	proxy    *url.URL
	sessions *registry.Registry[SessionStrategy]
	schemes  *registry.Registry[auth.Scheme]
	creds    auth.CredentialsProvider
	jar      http.CookieJar
	hooks    Hooks
	log      zerolog.Logger

	transport *http.Transport
	http      *http.Client
	reactor   *reactor.Reactor

	state     atomic.Int32
	ctx       context.Context
	cancel    context.CancelCauseFunc
	closeOnce sync.Once
	closeErr  error
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Config returns a copy of the configuration the client was created with.
func (c *Client) Config() ClientConfig {
	return c.cfg.clone()
}

// Proxy returns the proxy all traffic is routed through, or nil.
func (c *Client) Proxy() *url.URL {
	if c.proxy == nil {
		return nil
	}
	u := *c.proxy
	return &u
}

// Schemes returns the URL schemes the client can connect to.
func (c *Client) Schemes() []string {
	return c.sessions.Names()
}

// AuthSchemes returns the registered authentication scheme names.
func (c *Client) AuthSchemes() []string {
	return c.schemes.Names()
}

func (c *Client) CredentialsProvider() auth.CredentialsProvider {
	return c.creds
}

func (c *Client) CookieJar() http.CookieJar {
	return c.jar
}

// Execute submits req and returns immediately. The caller's goroutine never
// waits on network I/O. req is cloned; its body is consumed by the client.
func (c *Client) Execute(ctx context.Context, req *http.Request) *Future {
	if c.State() == StateClosed {
		return failedFuture(newError(KindClosed, "execute", nil))
	}
	if req == nil || req.URL == nil {
		return failedFuture(newError(KindRequestFailed, "execute", errors.New("nil request")))
	}
	scheme := strings.ToLower(req.URL.Scheme)
	if _, ok := c.sessions.Lookup(scheme); !ok {
		return failedFuture(newError(KindUnsupportedScheme, "execute", fmt.Errorf("scheme %q", req.URL.Scheme)))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(c.ctx, func() {
		cancel(context.Cause(c.ctx))
	})

	out := req.Clone(reqCtx)
	id := out.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		out.Header.Set(RequestIDHeader, id)
	}

	job := &requestJob{
		client: c,
		ctx:    reqCtx,
		cancel: cancel,
		stop:   stop,
		req:    out,
		future: newFuture(cancel),
		info: RequestInfo{
			Method:    out.Method,
			Scheme:    scheme,
			Route:     route(out.URL),
			RequestID: id,
		},
	}
	job.watch = newWatchdog(c.cfg.SocketTimeout, cancel)

	c.state.CompareAndSwap(int32(StateCreated), int32(StateActive))
	if err := c.reactor.Submit(job); err != nil {
		job.finish()
		job.future.complete(nil, c.requestError("submit", err))
	}
	return job.future
}

// ExecuteFunc is Execute with a completion callback. fn owns the response
// body. It runs on a client goroutine, or before ExecuteFunc returns when
// the request is rejected without being submitted.
func (c *Client) ExecuteFunc(ctx context.Context, req *http.Request, fn func(*http.Response, error)) *Future {
	f := c.Execute(ctx, req)
	f.onComplete(fn)
	return f
}

// Do executes req and waits for the response headers.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.Execute(ctx, req).Get(ctx)
}

// Stats reports pool limits and usage.
func (c *Client) Stats() (PoolStats, error) {
	if c.State() == StateClosed {
		return PoolStats{}, newError(KindClosed, "stats", nil)
	}
	rs := c.reactor.Stats()
	return PoolStats{
		MaxTotal:    c.cfg.EffectiveMaxTotal(),
		MaxPerRoute: c.cfg.EffectiveMaxPerRoute(),
		Leased:      rs.Leased,
		Pending:     rs.Pending,
		IOThreads:   rs.Workers,
	}, nil
}

// Close cancels in-flight requests, stops the dispatcher and releases pooled
// connections. It is safe to call more than once and from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.cancel(errClientClosed)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.reactor.Shutdown(ctx); err != nil {
			c.closeErr = newError(KindClosed, "shutdown reactor", err)
		}
		c.transport.CloseIdleConnections()
		closeSchemes(c.schemes)

		c.log.Info().Msg("http client closed")
	})
	return c.closeErr
}

func (c *Client) requestError(op string, err error) error {
	if c.ctx.Err() != nil || errors.Is(err, reactor.ErrShutdown) {
		return newError(KindClosed, op, err)
	}
	return newError(KindRequestFailed, op, err)
}

func closeSchemes(schemes *registry.Registry[auth.Scheme]) {
	for _, name := range schemes.Names() {
		s, _ := schemes.Lookup(name)
		if closer, ok := s.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

func route(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if strings.EqualFold(u.Scheme, "https") {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// requestJob carries one request through the reactor.
type requestJob struct {
	client *Client
	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   func() bool
	req    *http.Request
	future *Future
	info   RequestInfo
	watch  *watchdog
}

func (j *requestJob) Context() context.Context { return j.ctx }

func (j *requestJob) Abort(err error) {
	if cause := context.Cause(j.ctx); cause != nil {
		err = cause
	}
	j.finish()
	j.future.complete(nil, j.client.requestError("acquire lease", err))
}

func (j *requestJob) Run(release func()) {
	c := j.client
	ctx := c.hooks.start(j.ctx, j.info)
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest:         func(httptrace.WroteRequestInfo) { j.watch.arm() },
		GotFirstResponseByte: j.watch.disarm,
	})

	started := time.Now()
	resp, err := c.http.Do(j.req.WithContext(ctx))
	j.watch.disarm()
	if err != nil {
		if j.watch.fired.Load() {
			err = fmt.Errorf("%w waiting for response: %w", ErrSocketTimeout, err)
		}
		release()
		j.finish()
		c.hooks.end(ctx, j.info, 0, started, err)
		c.log.Debug().Err(err).Str("request_id", j.info.RequestID).Str("route", j.info.Route).Msg("request failed")
		j.future.complete(nil, c.requestError("do", err))
		return
	}

	c.hooks.end(ctx, j.info, resp.StatusCode, started, nil)
	resp.Body = &leasedBody{
		ReadCloser: resp.Body,
		ctx:        j.ctx,
		watch:      j.watch,
		release: func() {
			release()
			j.finish()
		},
	}
	j.future.complete(resp, nil)
}

func (j *requestJob) finish() {
	j.watch.disarm()
	j.stop()
	j.cancel(nil)
}

// watchdog cancels a request that sees no data for longer than the socket
// timeout while armed.
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newWatchdog(timeout time.Duration, cancel context.CancelCauseFunc) *watchdog {
	w := &watchdog{timeout: timeout}
	// Created with an unreachable duration so it cannot fire before Stop.
	w.timer = time.AfterFunc(math.MaxInt64, func() {
		w.fired.Store(true)
		cancel(ErrSocketTimeout)
	})
	w.timer.Stop()
	return w
}

func (w *watchdog) arm()    { w.timer.Reset(w.timeout) }
func (w *watchdog) disarm() { w.timer.Stop() }

// leasedBody returns the pool lease when the body is closed.
type leasedBody struct {
	io.ReadCloser
	ctx     context.Context
	watch   *watchdog
	release func()
	once    sync.Once
}

func (b *leasedBody) Read(p []byte) (int, error) {
	b.watch.arm()
	n, err := b.ReadCloser.Read(p)
	b.watch.disarm()
	switch {
	case err == nil || err == io.EOF:
		return n, err
	case b.watch.fired.Load():
		return n, newError(KindRequestFailed, "read body", ErrSocketTimeout)
	case errors.Is(context.Cause(b.ctx), errClientClosed):
		return n, newError(KindClosed, "read body", err)
	default:
		return n, newError(KindRequestFailed, "read body", err)
	}
}

func (b *leasedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
