package logger

import (
	"errors"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
	}{
		{"development mode", true},
		{"production mode", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(tt.debug)
			if err != nil {
				t.Fatalf("NewLogger() error = %v, want nil", err)
			}
			if log == nil {
				t.Fatal("NewLogger() returned nil logger")
			}

			log.Info("test message")
			// Sync may fail on stderr in test environments.
			_ = log.Sync()
		})
	}
}

func TestNewNopLogger(t *testing.T) {
	log := NewNopLogger()

	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")

	if child := log.With(String("key", "value")); child == nil {
		t.Fatal("With() returned nil")
	}
	if err := log.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}

func TestLoggerFieldTypes(t *testing.T) {
	log, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer log.Sync()

	log.Debug("field types",
		String("string_field", "value"),
		Int("int_field", 42),
		Int64("int64_field", 1<<40),
		Bool("bool_field", true),
		Duration("duration_field", time.Second),
		Time("time_field", time.Now()),
		Error(errors.New("test error")),
		NamedError("other_error", errors.New("other")),
		Any("any_field", map[string]any{"key": "value"}),
		Strings("strings_field", []string{"a", "b"}),
	)
}

func TestLoggerWith(t *testing.T) {
	log, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer log.Sync()

	contextLogger := log.With(
		String("service", "publisher"),
		String("version", "1.0.0"),
	)
	if contextLogger == nil {
		t.Fatal("With() returned nil")
	}
	contextLogger.Info("message with context")

	chained := contextLogger.With(String("job_id", "abc-123"))
	if chained == nil {
		t.Fatal("chained With() returned nil")
	}
	chained.Info("message with chained context")
}

func TestLoggerConcurrent(t *testing.T) {
	log, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer log.Sync()

	done := make(chan bool, 10)
	for i := range 10 {
		go func(id int) {
			log.Info("concurrent message", Int("goroutine_id", id))
			done <- true
		}(i)
	}
	for range 10 {
		<-done
	}
}
