package logging

import (
	"fmt"
	"log/slog"
)

// LazyValue defers building a log value until a handler actually emits the
// record. slog resolves it through the LogValuer interface; other sinks fall
// back to String.
type LazyValue struct {
	fn func() any
}

// Lazy wraps fn so it only runs when the record is written.
func Lazy(fn func() any) LazyValue { return LazyValue{fn: fn} }

// Sprintf is Lazy for a formatted string.
func Sprintf(format string, args ...any) LazyValue {
	return LazyValue{fn: func() any { return fmt.Sprintf(format, args...) }}
}

func (l LazyValue) LogValue() slog.Value {
	if l.fn == nil {
		return slog.StringValue("")
	}
	return slog.AnyValue(l.fn())
}

func (l LazyValue) String() string {
	if l.fn == nil {
		return ""
	}
	return fmt.Sprint(l.fn())
}
