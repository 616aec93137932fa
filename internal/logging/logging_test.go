package logging

import (
	"bytes"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]log.Lvl{"debug": log.DEBUG, "": log.INFO, "WARN": log.WARN, "error": log.ERROR, "off": log.OFF} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_UsesCurrentLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })
	require.NoError(t, SetLevel("warn"))

	var buf bytes.Buffer
	l := New("processor")
	l.SetOutput(&buf)
	l.Infof("hidden")
	l.Warnf("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "processor")
}
