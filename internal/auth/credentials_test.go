package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicCredentialsProvider_Empty(t *testing.T) {
	p := NewBasicCredentialsProvider()
	_, ok := p.Credentials(Scope{Host: "example.com", Port: 443})
	assert.False(t, ok)
	assert.Zero(t, p.Len())
}

func TestBasicCredentialsProvider_BestMatch(t *testing.T) {
	p := NewBasicCredentialsProvider()
	p.SetCredentials(AnyScope, Credentials{Username: "any"})
	p.SetCredentials(Scope{Host: "API.example.com"}, Credentials{Username: "host"})
	p.SetCredentials(Scope{Host: "api.example.com", Port: 8443}, Credentials{Username: "host-port"})
	p.SetCredentials(Scope{Host: "api.example.com", Realm: "admin", Scheme: "digest"}, Credentials{Username: "realm"})

	tests := []struct {
		name  string
		scope Scope
		want  string
	}{
		{name: "unknown host falls back to any", scope: Scope{Host: "other.com", Port: 80}, want: "any"},
		{name: "host match", scope: Scope{Host: "api.example.com", Port: 443, Scheme: "Basic"}, want: "host"},
		{name: "host and port beat host", scope: Scope{Host: "api.example.com", Port: 8443}, want: "host-port"},
		{name: "realm and scheme", scope: Scope{Host: "api.example.com", Port: 443, Realm: "admin", Scheme: "Digest"}, want: "realm"},
		{name: "host lookup ignores case", scope: Scope{Host: "Api.Example.Com", Port: 80}, want: "host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, ok := p.Credentials(tt.scope)
			assert.True(t, ok)
			assert.Equal(t, tt.want, creds.Username)
		})
	}
}

func TestBasicCredentialsProvider_Clear(t *testing.T) {
	p := NewBasicCredentialsProvider()
	p.SetCredentials(AnyScope, Credentials{Username: "u"})
	assert.Equal(t, 1, p.Len())

	p.Clear()
	_, ok := p.Credentials(Scope{Host: "example.com"})
	assert.False(t, ok)
}

func TestScopeMatch_Conflicts(t *testing.T) {
	s := Scope{Host: "a.com", Port: 80}
	assert.Equal(t, -1, s.match(Scope{Host: "b.com", Port: 80}))
	assert.Equal(t, -1, s.match(Scope{Host: "a.com", Port: 81}))
	assert.Equal(t, 12, s.match(Scope{Host: "a.com", Port: 80, Realm: "r"}))
}
