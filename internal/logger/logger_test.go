package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{FatalLevel, "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	t.Run("LogLevelFiltering", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, WarnLevel)

		log.Debug("debug message")
		assert.Empty(t, buf.String(), "Debug message should be filtered")

		log.Info("info message")
		assert.Empty(t, buf.String(), "Info message should be filtered")

		log.Warn("warn message")
		assert.NotEmpty(t, buf.String(), "Warn message should be logged")

		buf.Reset()
		log.Error("error message")
		assert.NotEmpty(t, buf.String(), "Error message should be logged")
	})

	t.Run("StructuredFields", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, InfoLevel)

		log.Info("slice fetched",
			String("slice_id", "s-42"),
			Error(errors.New("decode failed")),
			Duration("elapsed", 1000000000), // 1 second
		)

		var entry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)

		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "slice fetched", entry["message"])
		assert.Equal(t, "s-42", entry["slice_id"])
		assert.Equal(t, "decode failed", entry["error"])
		assert.Equal(t, "1s", entry["elapsed"])
		assert.NotNil(t, entry["timestamp"])
		assert.NotNil(t, entry["caller"])
	})

	t.Run("WithFields", func(t *testing.T) {
		var buf bytes.Buffer
		baseLogger := NewLogger(&buf, InfoLevel)

		log := baseLogger.WithFields(
			String("session_id", "sess-1"),
			String("track_id", "track-0"),
		)

		log.Info("track ready")

		var entry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)

		assert.Equal(t, "sess-1", entry["session_id"])
		assert.Equal(t, "track-0", entry["track_id"])
	})

	t.Run("WithContext", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, InfoLevel)

		ctx := context.WithValue(context.Background(), "request_id", "req-123")
		ctx = context.WithValue(ctx, "trace_id", "trace-456")

		contextLogger := log.WithContext(ctx)
		contextLogger.Info("slice request received")

		var entry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)

		assert.Equal(t, "req-123", entry["request_id"])
		assert.Equal(t, "trace-456", entry["trace_id"])
	})

	t.Run("SetLevel", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&buf, InfoLevel)

		log.Debug("debug 1")
		assert.Empty(t, buf.String(), "Debug should be filtered at info level")

		log.SetLevel(DebugLevel)
		log.Debug("debug 2")
		assert.NotEmpty(t, buf.String(), "Debug should be logged at debug level")
	})

	t.Run("GetLevel", func(t *testing.T) {
		log := NewLogger(&bytes.Buffer{}, InfoLevel)
		assert.Equal(t, InfoLevel, log.GetLevel())

		log.SetLevel(ErrorLevel)
		assert.Equal(t, ErrorLevel, log.GetLevel())
	})
}

func TestDefaultLogger(t *testing.T) {
	t.Run("DefaultLoggerExists", func(t *testing.T) {
		log := GetDefaultLogger()
		assert.NotNil(t, log)
	})

	t.Run("SetDefaultLogger", func(t *testing.T) {
		var buf bytes.Buffer
		newLogger := NewLogger(&buf, DebugLevel)
		SetDefaultLogger(newLogger)

		Debug("test debug")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		Info("test info")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		Warn("test warn")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		ErrorMsg("test error")
		assert.NotEmpty(t, buf.String())
	})
}

func TestFieldConstructors(t *testing.T) {
	t.Run("StringField", func(t *testing.T) {
		field := String("key", "value")
		assert.Equal(t, "key", field.Key)
		assert.Equal(t, "value", field.Value)
	})

	t.Run("ErrorField", func(t *testing.T) {
		err := errors.New("test error")
		field := Error(err)
		assert.Equal(t, "error", field.Key)
		assert.Equal(t, "test error", field.Value)

		field = Error(nil)
		assert.Equal(t, "error", field.Key)
		assert.Nil(t, field.Value)
	})

	t.Run("DurationField", func(t *testing.T) {
		field := Duration("elapsed", 1500000000)
		assert.Equal(t, "elapsed", field.Key)
		assert.Equal(t, "1.5s", field.Value)
	})
}

func BenchmarkLogger(b *testing.B) {
	log := NewLogger(&bytes.Buffer{}, InfoLevel)

	b.Run("SimpleLog", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			log.Info("benchmark message")
		}
	})

	b.Run("LogWithFields", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			log.Info("benchmark message",
				String("key1", "value1"),
				Duration("elapsed", 1000000),
			)
		}
	})

	b.Run("FilteredLog", func(b *testing.B) {
		log.SetLevel(ErrorLevel)
		for i := 0; i < b.N; i++ {
			log.Debug("filtered message")
		}
	})
}
