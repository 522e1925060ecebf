package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		got := parseLevel(in)
		require.NotNil(t, got, in)
		assert.Equal(t, want, *got)
	}
	assert.Nil(t, parseLevel("loud"))
}

func TestWithAndCode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With(String("component", "registry"))

	code := 404
	log.Info("refresh recorded", Code("code", &code))
	log.Info("refresh recorded", Code("code", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, "registry", first["component"])
	assert.EqualValues(t, 404, first["code"])
	assert.Nil(t, entries[1].ContextMap()["code"])
}
