package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"asynchttp/internal/httpclient"
)

// Client is the subset of *httpclient.Client the handlers use.
type Client interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	Stats() (httpclient.PoolStats, error)
	State() httpclient.State
}

// Handler holds the HTTP handlers
type Handler struct {
	client Client
}

// NewHandler creates a new handler with the given client
func NewHandler(client Client) *Handler {
	return &Handler{client: client}
}

// FetchRequest is the body of POST /v1/fetch.
type FetchRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// FetchResponse is the upstream response relayed by POST /v1/fetch.
type FetchResponse struct {
	Status    int                 `json:"status"`
	Headers   map[string][]string `json:"headers"`
	Body      string              `json:"body"`
	Truncated bool                `json:"truncated,omitempty"`
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	state := h.client.State()
	if state == httpclient.StateClosed {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"client": state.String(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"client": state.String(),
	})
}

// Pool handles GET /v1/pool
func (h *Handler) Pool(c echo.Context) error {
	stats, err := h.client.Stats()
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Fetch handles POST /v1/fetch
func (h *Handler) Fetch(c echo.Context) error {
	var req FetchRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
	}
	if req.URL == "" {
		return errorJSON(c, http.StatusBadRequest, "invalid_request_error", "url is required")
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	upstream, err := http.NewRequestWithContext(c.Request().Context(), method, req.URL, body)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	}
	for k, v := range req.Headers {
		upstream.Header.Set(k, v)
	}

	resp, err := h.client.Do(upstream.Context(), upstream)
	if err != nil {
		return handleError(c, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return handleError(c, err)
	}
	out := FetchResponse{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    buf.String(),
	}
	if n > maxBodyBytes {
		out.Body = out.Body[:maxBodyBytes]
		out.Truncated = true
	}
	return c.JSON(http.StatusOK, out)
}

// handleError maps client errors to HTTP responses.
func handleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, httpclient.ErrSocketTimeout):
		return errorJSON(c, http.StatusGatewayTimeout, "timeout_error", err.Error())
	case errors.Is(err, httpclient.ErrClosed):
		return errorJSON(c, http.StatusServiceUnavailable, "unavailable_error", err.Error())
	case errors.Is(err, httpclient.ErrUnsupportedScheme):
		return errorJSON(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	default:
		return errorJSON(c, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

func errorJSON(c echo.Context, status int, errType, message string) error {
	return c.JSON(status, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errType,
			"message": message,
		},
	})
}
