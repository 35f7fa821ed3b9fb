package gateway

import (
	"testing"

	"github.com/jhomra21/opencanvas/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestResolveAuth_ConfigPrecedence(t *testing.T) {
	t.Setenv("OPENCANVAS_GATEWAY_TOKEN", "env-token")

	auth := ResolveAuth(config.GatewayAuth{Mode: "token", Token: "config-token"})
	assert.Equal(t, "config-token", auth.Token)
}

func TestResolveAuth_EnvFallback(t *testing.T) {
	t.Setenv("OPENCANVAS_GATEWAY_TOKEN", "env-token")

	auth := ResolveAuth(config.GatewayAuth{Mode: "token"})
	assert.Equal(t, "env-token", auth.Token)
}

func TestResolveAuth_ModeInference(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{Password: "secret"})
	assert.Equal(t, "password", auth.Mode)

	auth = ResolveAuth(config.GatewayAuth{})
	assert.Equal(t, "token", auth.Mode)
}

func TestAuthorize_Token(t *testing.T) {
	server := ResolvedAuth{Mode: "token", Token: "secret-token"}

	result := Authorize(server, &ConnectAuth{Token: "secret-token"})
	assert.True(t, result.OK)
	assert.Equal(t, "token", result.Method)

	result = Authorize(server, &ConnectAuth{Token: "wrong"})
	assert.False(t, result.OK)

	result = Authorize(server, nil)
	assert.False(t, result.OK)
}

func TestAuthorize_Password(t *testing.T) {
	server := ResolvedAuth{Mode: "password", Password: "hunter2"}

	result := Authorize(server, &ConnectAuth{Password: "hunter2"})
	assert.True(t, result.OK)
	assert.Equal(t, "password", result.Method)

	result = Authorize(server, &ConnectAuth{Password: ""})
	assert.False(t, result.OK)
}

func TestAuthorize_UnconfiguredServerRejects(t *testing.T) {
	result := Authorize(ResolvedAuth{Mode: "token"}, &ConnectAuth{Token: "anything"})
	assert.False(t, result.OK)
}

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("abc", "abc"))
	assert.False(t, safeEqual("abc", "abd"))
	assert.False(t, safeEqual("abc", "abcd"))
	assert.False(t, safeEqual("", "a"))
	assert.True(t, safeEqual("", ""))
}
