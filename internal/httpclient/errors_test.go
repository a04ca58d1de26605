package httpclient

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientError_Error(t *testing.T) {
	err := newError(KindTLSInit, "build tls context", errors.New("bad pem"))
	assert.Equal(t, "httpclient: tls_init: build tls context: bad pem", err.Error())

	assert.Equal(t, "httpclient: closed", newError(KindClosed, "", nil).Error())
}

func TestClientError_Is(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", newError(KindReactorInit, "start reactor", cause))

	assert.ErrorIs(t, err, ErrReactorInit)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrClosed)
	assert.True(t, IsKind(err, KindReactorInit))
	assert.Equal(t, KindReactorInit, KindOf(err))
}

func TestClientError_IsRequiresBareTarget(t *testing.T) {
	a := newError(KindRequestFailed, "do", errors.New("a"))
	b := newError(KindRequestFailed, "do", errors.New("b"))

	assert.False(t, errors.Is(a, b))
}

func TestKindOf_NonClientError(t *testing.T) {
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(0), KindOf(nil))
	assert.Equal(t, "unknown", ErrorKind(0).String())
}
