package shared

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateState(t *testing.T) {
	t.Run("is alphanumeric with fixed length", func(t *testing.T) {
		state, err := GenerateState()
		require.NoError(t, err)
		assert.Len(t, state, StateLength)
		for _, r := range state {
			assert.True(t, strings.ContainsRune(stateAlphabet, r), "unexpected rune %q", r)
		}
	})

	t.Run("differs between calls", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 50 {
			state, err := GenerateState()
			require.NoError(t, err)
			assert.False(t, seen[state], "duplicate state %s", state)
			seen[state] = true
		}
	})
}

func TestRandomString(t *testing.T) {
	t.Run("rejects non-positive length", func(t *testing.T) {
		_, err := RandomString(0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("honors length", func(t *testing.T) {
		s, err := RandomString(64)
		require.NoError(t, err)
		assert.Len(t, s, 64)
	})
}

func TestParseLevel(t *testing.T) {
	tc := []struct {
		name  string
		level string
		want  log.Level
	}{
		{name: "empty defaults to info", level: "", want: log.InfoLevel},
		{name: "debug", level: "debug", want: log.DebugLevel},
		{name: "upper case", level: "WARN", want: log.WarnLevel},
		{name: "unknown defaults to info", level: "chatty", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.level))
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("child logger carries fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "test")
		logger.Info("hello")

		out := buf.String()
		assert.Contains(t, out, "hello")
		assert.Contains(t, out, "component=test")
	})

	t.Run("level filters output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("hidden")
		assert.Empty(t, buf.String())
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]int{"a": 1}

	t.Run("compact", func(t *testing.T) {
		out, err := MarshalJSON(data, false)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(out))
	})

	t.Run("pretty", func(t *testing.T) {
		out, err := MarshalJSON(data, true)
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"a\": 1\n}", string(out))
	})
}

func TestErrorCode(t *testing.T) {
	tc := []struct {
		err  error
		want string
	}{
		{ErrMissingCode, "missing_code"},
		{ErrStateMismatch, "state_mismatch"},
		{ErrInvalidToken, "invalid_token"},
		{ErrRefreshFailure, "refresh_failure"},
		{ErrNoFile, "no_file"},
		{ErrFileTooLarge, "file_too_large"},
		{ErrInvalidFormat, "invalid_format"},
		{ErrTimeout, "unknown"},
	}

	for _, tt := range tc {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("%w: stored state expired", ErrStateMismatch)
		assert.Equal(t, "state_mismatch", ErrorCode(err))
	})
}
