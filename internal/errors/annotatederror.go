// Package errors extends the standard library errors with slog annotations and call-site capture.
//
// Errors created with [NewSentinel] or [Wrap] remember where they were created so that
// [SlogError] can point the reader to the source line.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// Re-exports so that callers only need a single errors import.
var (
	New    = stderrors.New
	Is     = stderrors.Is
	As     = stderrors.As
	Unwrap = stderrors.Unwrap
	Join   = stderrors.Join
)

const maxStackDepth = 32

type annotatedError struct {
	msg   string
	cause error
	attrs []slog.Attr
	pc    uintptr
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// NewSentinel creates a root error that records its creation site.
func NewSentinel(msg string) error {
	return &annotatedError{msg: msg, cause: nil, attrs: nil, pc: callerPC(3)} //nolint:mnd // skip runtime.Callers, callerPC, NewSentinel
}

// Wrap adds context and optional slog attributes to err.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	return &annotatedError{msg: msg, cause: err, attrs: attrs, pc: callerPC(3)} //nolint:mnd // skip runtime.Callers, callerPC, Wrap
}

// DecoratePanic converts a recovered panic value into an error pointing to the panicking line.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	var msg string
	if err, ok := recovered.(error); ok {
		msg = "panic: " + err.Error()
	} else {
		msg = fmt.Sprintf("panic: %v", recovered)
	}
	return &annotatedError{msg: msg, cause: nil, attrs: nil, pc: panicPC()}
}

// SlogError converts err into a slog group containing the message, collected annotations and the source
// location of the innermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	var (
		attrs  []slog.Attr
		source string
	)
	for _, ae := range collect(err) {
		attrs = append(attrs, ae.attrs...)
		if ae.pc != 0 {
			source = formatPC(ae.pc)
		}
	}
	group := []any{slog.String("message", err.Error())}
	if len(attrs) > 0 {
		args := make([]any, len(attrs))
		for i, a := range attrs {
			args[i] = a
		}
		group = append(group, slog.Group("annotations", args...))
	}
	if source != "" {
		group = append(group, slog.String("source", source))
	}
	return slog.Group("error", group...)
}

// collect walks the error tree depth first and returns the annotated errors outermost first.
func collect(err error) []*annotatedError {
	var out []*annotatedError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ae, ok := e.(*annotatedError); ok { //nolint:errorlint // we walk the tree manually
			out = append(out, ae)
		}
		switch u := e.(type) { //nolint:errorlint // we walk the tree manually
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(skip, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

// panicPC finds the first frame after runtime.gopanic, which is where the panic was raised.
func panicPC() uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	sawPanic := false
	for {
		frame, more := frames.Next()
		if sawPanic && !strings.HasPrefix(frame.Function, "runtime.") {
			return frame.PC
		}
		if frame.Function == "runtime.gopanic" {
			sawPanic = true
		}
		if !more {
			return 0
		}
	}
}

func formatPC(pc uintptr) string {
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	if frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}
