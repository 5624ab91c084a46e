package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestToZapFields(t *testing.T) {
	fields := toZapFields(map[string]any{"attempt": "a1", "chain": int64(8453)})
	assert.Len(t, fields, 2)
	assert.Empty(t, toZapFields(nil))
}
