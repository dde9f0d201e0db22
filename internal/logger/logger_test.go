package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_NewLogger(t *testing.T) {
	t.Run("Debug logger enables debug level", func(t *testing.T) {
		l, err := NewLogger(&LoggerConfig{Debug: true, Name: "governor"})
		assert.Nil(t, err)
		assert.True(t, l.Core().Enabled(zap.DebugLevel))
	})
	t.Run("Default logger stays at info", func(t *testing.T) {
		l, err := NewLogger(&LoggerConfig{}, zap.AddStacktrace(zap.ErrorLevel))
		assert.Nil(t, err)
		assert.False(t, l.Core().Enabled(zap.DebugLevel))
		assert.True(t, l.Core().Enabled(zap.InfoLevel))
	})
}
