package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"DEBUG": logrus.DebugLevel,
		"debug": logrus.DebugLevel,
		"WARN":  logrus.WarnLevel,
		"ERROR": logrus.ErrorLevel,
		"":      logrus.InfoLevel,
		"noisy": logrus.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestWithIssueWritesFields(t *testing.T) {
	Initialize("INFO", true)
	var buf bytes.Buffer
	Logger.SetOutput(&buf)

	WithIssue("abc123", "clustering").Info("merged")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc123", entry["issue_id"])
	assert.Equal(t, "clustering", entry["component"])
	assert.Equal(t, "merged", entry["msg"])
}

func TestWithErrorAddsStackAtDebug(t *testing.T) {
	Initialize("DEBUG", true)
	var buf bytes.Buffer
	Logger.SetOutput(&buf)

	WithError(errors.New("boom"), "store").Error("write failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.NotEmpty(t, entry["stack_trace"])
}
