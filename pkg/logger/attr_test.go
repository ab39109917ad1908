package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nousware/authkit/pkg/logger"
)

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	empty := logger.Errors(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestIdentityID(t *testing.T) {
	attr := logger.IdentityID(42)
	require.Equal(t, "identity_id", attr.Key)
	assert.Equal(t, int64(42), attr.Value.Int64())
}

func TestProvider(t *testing.T) {
	attr := logger.Provider("google")
	require.Equal(t, "provider", attr.Key)
	assert.Equal(t, "google", attr.Value.String())
}

func TestComponent(t *testing.T) {
	attr := logger.Component("token")
	require.Equal(t, "component", attr.Key)
	assert.Equal(t, "token", attr.Value.String())
}
