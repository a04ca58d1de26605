package server

import (
	"context"
	"net/http"
	"sync"

	"asynchttp/internal/httpclient"
)

// mockClient answers Do with a canned response or error.
type mockClient struct {
	mu       sync.Mutex
	state    httpclient.State
	stats    httpclient.PoolStats
	statsErr error
	resp     func(*http.Request) (*http.Response, error)
	requests []*http.Request
}

func newMockClient() *mockClient {
	return &mockClient{
		state: httpclient.StateActive,
		stats: httpclient.PoolStats{MaxTotal: 20, MaxPerRoute: 10, IOThreads: 2},
	}
}

func (m *mockClient) Do(_ context.Context, req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.resp == nil {
		return &http.Response{StatusCode: http.StatusNoContent, Header: http.Header{}, Body: http.NoBody}, nil
	}
	return m.resp(req)
}

func (m *mockClient) Stats() (httpclient.PoolStats, error) {
	return m.stats, m.statsErr
}

func (m *mockClient) State() httpclient.State {
	return m.state
}
