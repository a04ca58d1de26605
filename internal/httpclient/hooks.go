package httpclient

import (
	"context"
	"time"
)

// RequestInfo describes a request for observability hooks.
type RequestInfo struct {
	Method    string
	Scheme    string // URL scheme, "http" or "https"
	Route     string // host:port of the destination
	RequestID string
}

// ResponseInfo describes a finished request for observability hooks.
type ResponseInfo struct {
	Method     string
	Scheme     string
	Route      string
	RequestID  string
	StatusCode int // 0 when no response was received
	Duration   time.Duration
	Error      error
}

// Hooks are optional callbacks around each executed request.
type Hooks struct {
	// OnRequestStart is called once a request holds a pool lease, before it
	// is sent. The returned context is used for the request.
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context

	// OnRequestEnd is called when response headers arrive or the request
	// fails. Body reads are not included in Duration.
	OnRequestEnd func(ctx context.Context, info ResponseInfo)
}

func (h Hooks) start(ctx context.Context, info RequestInfo) context.Context {
	if h.OnRequestStart == nil {
		return ctx
	}
	if next := h.OnRequestStart(ctx, info); next != nil {
		return next
	}
	return ctx
}

func (h Hooks) end(ctx context.Context, info RequestInfo, status int, started time.Time, err error) {
	if h.OnRequestEnd == nil {
		return
	}
	h.OnRequestEnd(ctx, ResponseInfo{
		Method:     info.Method,
		Scheme:     info.Scheme,
		Route:      info.Route,
		RequestID:  info.RequestID,
		StatusCode: status,
		Duration:   time.Since(started),
		Error:      err,
	})
}
