package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		debug     bool
		wantDebug bool
	}{
		{debug: true, wantDebug: true},
		{debug: false, wantDebug: false},
	}
	for _, tt := range tests {
		logger, err := NewLogger(tt.debug)
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.Equal(t, tt.wantDebug, logger.Core().Enabled(zap.DebugLevel))
		assert.True(t, logger.Core().Enabled(zap.InfoLevel))
		_ = logger.Sync()
	}
}
