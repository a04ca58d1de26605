package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

var errFutureCancelled = errors.New("request cancelled")

// Future is the pending result of Client.Execute.
type Future struct {
	done   chan struct{}
	cancel context.CancelCauseFunc

	once      sync.Once
	resp      *http.Response
	err       error
	callbacks []func(*http.Response, error)
	mu        sync.Mutex
}

func newFuture(cancel context.CancelCauseFunc) *Future {
	return &Future{done: make(chan struct{}), cancel: cancel}
}

func failedFuture(err error) *Future {
	f := newFuture(func(error) {})
	f.complete(nil, err)
	return f
}

// Done is closed once the response headers arrived or the request failed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get waits for the result. If ctx ends first the request is cancelled and
// the context error is returned; a response that arrives later is closed.
func (f *Future) Get(ctx context.Context) (*http.Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	default:
	}
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		f.Cancel()
		f.onComplete(func(resp *http.Response, _ error) {
			if resp != nil {
				_ = resp.Body.Close()
			}
		})
		return nil, ctx.Err()
	}
}

// Cancel aborts this request only. It has no effect once the response
// headers have arrived.
func (f *Future) Cancel() {
	select {
	case <-f.done:
	default:
		f.cancel(errFutureCancelled)
	}
}

func (f *Future) complete(resp *http.Response, err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.resp, f.err = resp, err
		callbacks := f.callbacks
		f.callbacks = nil
		close(f.done)
		f.mu.Unlock()

		for _, cb := range callbacks {
			cb(resp, err)
		}
	})
}

// onComplete registers cb to run with the result. It runs immediately if
// the future is already done.
func (f *Future) onComplete(cb func(*http.Response, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		cb(f.resp, f.err)
		return
	default:
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}
