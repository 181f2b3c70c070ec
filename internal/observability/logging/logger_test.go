package logging

import (
	"bytes"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, SetLogLevel("debug"))
	assert.True(t, IsDebugEnabled())
	require.NoError(t, SetLogLevel("warn"))
	assert.False(t, IsDebugEnabled())
	assert.Error(t, SetLogLevel("loud"))
	require.NoError(t, SetLogLevel("info"))
}

func TestSensitiveAttributesAreDropped(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerWithWriter("info", &buf)
	require.NoError(t, err)

	logger.Info("sign in", "email", "a@example.com", "password", "hunter2", "refresh_token", "r-1")

	out := buf.String()
	assert.Contains(t, out, "a@example.com")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "r-1")
}

func TestRedactURL(t *testing.T) {
	u, err := url.Parse("https://user:pw@example.com/rest/v1/members?apikey=secret&select=status")
	require.NoError(t, err)

	got := RedactURL(u).LogValue().String()
	assert.NotContains(t, got, "secret")
	assert.NotContains(t, got, ":pw@")
	assert.Contains(t, got, "select=status")
}

func TestMaskedEmail(t *testing.T) {
	assert.Equal(t, "u***@example.com", MaskedEmail("user1@example.com").LogValue().String())
	assert.Equal(t, "***", MaskedEmail("nope").LogValue().String())
	assert.Equal(t, slog.KindString, MaskedEmail("x@y").LogValue().Kind())
}
