package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	log, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	log, err = New("warn", "json")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Core().Enabled(zap.ErrorLevel))
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
