// Package errors provides annotated errors that carry structured logging
// attributes and the source location where the error was wrapped. It re-exports
// the standard library helpers so callers only need one errors import.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// maxStackDepth bounds the stack capture when locating the interesting frame.
const maxStackDepth = 32

type annotatedError struct {
	err         error
	msg         string
	annotations []slog.Attr
	frame       runtime.Frame
}

// New returns an error that formats as the given text. It is the standard
// library constructor re-exported for convenience.
func New(text string) error {
	return errors.New(text)
}

// NewSentinel creates an error meant to be used as a package-level sentinel
// matched with Is.
func NewSentinel(msg string) error {
	return &annotatedError{msg: msg}
}

// Wrap annotates err with a message and optional slog attributes, recording the
// caller's source location for SlogError.
func Wrap(err error, msg string, annotations ...slog.Attr) error {
	return &annotatedError{
		err:         err,
		msg:         msg,
		annotations: annotations,
		frame:       callerFrame(),
	}
}

func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	cause := e.err.Error()
	if cause == "" {
		return e.msg
	}
	return e.msg + ": " + cause
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

// callerFrame walks past this package's own frames and returns the first frame
// belonging to the caller.
func callerFrame() runtime.Frame {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasSuffix(frame.File, "annotatederror.go") {
			return frame
		}
		if !more {
			return frame
		}
	}
}

// panicFrame returns the frame where the panic was raised, identified as the
// first non-runtime frame after runtime.gopanic.
func panicFrame() runtime.Frame {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	sawPanic := false
	var fallback runtime.Frame
	for {
		frame, more := frames.Next()
		if fallback.PC == 0 && !strings.HasSuffix(frame.File, "annotatederror.go") {
			fallback = frame
		}
		if sawPanic && !strings.HasPrefix(frame.Function, "runtime.") {
			return frame
		}
		if strings.HasPrefix(frame.Function, "runtime.gopanic") {
			sawPanic = true
		}
		if !more {
			return fallback
		}
	}
}

// DecoratePanic converts a recovered panic value into an annotated error whose
// source location points at the panic site. Returns nil when recovered is nil.
//
// Usage:
//
//	defer func() {
//		if rvr := recover(); rvr != nil {
//			logger.LogAttrs(ctx, slog.LevelError, "panic", errors.SlogError(errors.DecoratePanic(rvr)))
//		}
//	}()
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	return &annotatedError{
		msg:   fmt.Sprintf("panic: %v", recovered),
		frame: panicFrame(),
	}
}

// SlogError renders err as a structured attr group containing the message, any
// annotations gathered from the error chain, and the source location of the
// outermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Group("error", slog.String("msg", "<nil>"))
	}

	attrs := []slog.Attr{slog.String("msg", err.Error())}

	var annotations []slog.Attr
	haveSource := false
	for unwrapped := err; unwrapped != nil; unwrapped = errors.Unwrap(unwrapped) {
		var annotated *annotatedError
		if errors.As(unwrapped, &annotated) {
			annotations = append(annotations, annotated.annotations...)
			if !haveSource && annotated.frame.File != "" {
				attrs = append(attrs, slog.String("source",
					fmt.Sprintf("%s:%d", annotated.frame.File, annotated.frame.Line)))
				haveSource = true
			}
			unwrapped = annotated
		}
	}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Attr{Key: "annotations", Value: slog.GroupValue(annotations...)})
	}

	return slog.Attr{Key: "error", Value: slog.GroupValue(attrs...)}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join wraps the given errors into a single error.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Unwrap returns the result of calling the Unwrap method on err, if any.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
