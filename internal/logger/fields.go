package logger

import (
	"time"

	"go.uber.org/zap"
)

// Typed field constructors, re-exported so callers never import zap.

func String(key, val string) Field { return zap.String(key, val) }

func Int(key string, val int) Field { return zap.Int(key, val) }

func Int64(key string, val int64) Field { return zap.Int64(key, val) }

func Bool(key string, val bool) Field { return zap.Bool(key, val) }

func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }

func Time(key string, val time.Time) Field { return zap.Time(key, val) }

// Error logs err under the "error" key.
func Error(err error) Field { return zap.Error(err) }

// NamedError logs err under a custom key, for entries carrying more than
// one error.
func NamedError(key string, err error) Field { return zap.NamedError(key, err) }

// Any serializes via reflection; prefer the typed constructors.
func Any(key string, val any) Field { return zap.Any(key, val) }

func Strings(key string, val []string) Field { return zap.Strings(key, val) }
