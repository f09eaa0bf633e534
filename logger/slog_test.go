package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogJSON(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlog(Options{Level: InfoLevel, Format: JSON, Output: &buf})

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("address", "10.0.0.1:5025").Info("query", "message", "*idn?")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("query", rec["msg"])
	require.Equal("10.0.0.1:5025", rec["address"])
	require.Equal("*idn?", rec["message"])
	require.Contains(rec, "ts")
}

func TestSlogLevel(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlog(Options{Level: WarnLevel, Format: Console, Output: &buf})
	require.Equal(WarnLevel, l.Level())

	l.Info("dropped")
	require.Zero(buf.Len())

	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, l.Level())
	l.Debug("kept")
	require.Contains(buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      Level
	}{
		{0, WarnLevel},
		{1, InfoLevel},
		{2, DebugLevel},
		{5, DebugLevel},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ParseLevel(tt.verbosity))
	}
}

func TestDefaultLogger(t *testing.T) {
	prev := GetLogger()
	defer SetDefault(prev)

	var buf bytes.Buffer
	SetDefault(NewSlog(Options{Level: DebugLevel, Format: JSON, Output: &buf}))
	Warn("device slow", "ms", 1200)
	require.Contains(t, buf.String(), "device slow")

	SetDefault(nil)
	require.NotNil(t, GetLogger())
}
