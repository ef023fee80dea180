package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Swind/go-task-manager/core"
)

var (
	_ core.Logger = (*Logrus)(nil)
	_ core.Logger = (*Zap)(nil)
	_ core.Logger = (*Slog)(nil)
)

func TestNew_Backends(t *testing.T) {
	for _, backend := range []string{"", BackendStd, BackendNone, BackendSlog, BackendLogrus, BackendZap} {
		t.Run(backend, func(t *testing.T) {
			l, err := New(backend, "debug")
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_Rejects(t *testing.T) {
	_, err := New("syslog", "info")
	assert.Error(t, err)

	_, err = New(BackendLogrus, "loud")
	assert.Error(t, err)

	_, err = New(BackendZap, "loud")
	assert.Error(t, err)

	_, err = New(BackendSlog, "loud")
	assert.Error(t, err)

	_, err = New(BackendStd, "loud")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

// TestLogrus_Fields verifies fields become logrus fields
// Given: a logrus logger writing JSON to a buffer
// When: Warn is called with two fields
// Then: the JSON entry carries the message, level and both fields
func TestLogrus_Fields(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	adapter := NewLogrus(l)

	// Act
	adapter.Warn("discarding queued tasks", core.F("name", "pool"), core.F("count", 3))

	// Assert
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "discarding queued tasks", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "pool", entry["name"])
	assert.EqualValues(t, 3, entry["count"])
}

func TestLogrus_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.InfoLevel)

	NewLogrus(l).Debug("hidden")

	assert.Zero(t, buf.Len())
}

// TestZap_Fields verifies fields and errors reach zap
// Given: a zap logger backed by an observer core
// When: Error is called with a string field and an error field
// Then: one entry is captured with both fields
func TestZap_Fields(t *testing.T) {
	// Arrange
	obsCore, logs := observer.New(zap.DebugLevel)
	adapter := NewZap(zap.New(obsCore))

	// Act
	adapter.Error("task panicked", core.F("manager", "pool"), core.F("error", errors.New("boom")))

	// Assert
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "task panicked", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "pool", fields["manager"])
	assert.Equal(t, "boom", fields["error"])
}

func TestSlog_Fields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlog(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Debug("continuation released", core.F("tasks", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "continuation released", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.EqualValues(t, 2, entry["tasks"])
}
