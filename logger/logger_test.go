package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerIsSafe(t *testing.T) {
	require.NotNil(t, Logger)
	// Must not panic before Initialize
	Logger.Infow("no-op message", "key", "value")
}

func TestInitializeConsole(t *testing.T) {
	require.NoError(t, Initialize(false))
	assert.False(t, JSONOutput)
	require.NotNil(t, Logger)
	Logger.Debugw("console message", "key", "value")
}

func TestInitializeJSON(t *testing.T) {
	require.NoError(t, Initialize(true))
	assert.True(t, JSONOutput)
	Logger.Infow("json message", "key", "value")
}

func TestNamed(t *testing.T) {
	require.NoError(t, Initialize(false))
	child := Named("store")
	require.NotNil(t, child)
	child.Infow("named message")
}
