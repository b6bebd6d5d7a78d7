package config_test

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-blog/config"
)

func TestOutputWriter(t *testing.T) {
	assert.Equal(t, os.Stdout, config.OutputWriter("stdout"))
	assert.Equal(t, os.Stdout, config.OutputWriter(" STDOUT "))
	assert.Equal(t, os.Stderr, config.OutputWriter("stderr"))
	assert.Equal(t, os.Stderr, config.OutputWriter(""))
}

func TestWithFieldsWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	prev := config.Log
	config.Log = config.NewLogger("info", &buf)
	t.Cleanup(func() { config.Log = prev })

	config.DebugWithFields("hidden", config.Fields{"slug": "x"})
	config.WarnWithFields("provider failed", config.Fields{"provider": "Groq", "error_kind": "Transport"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &got))
	assert.Equal(t, "provider failed", got["message"])
	assert.Equal(t, "WARNING", got["level"])
	assert.Equal(t, "Groq", got["provider"])
	assert.Equal(t, "Transport", got["error_kind"])
}
