// errors.go - error kinds for the compiler and control API

package lyd

import "fmt"

// CompileError describes a syntax or semantic failure in compile().
// It carries the byte offset into the source string where the error was
// detected, plus a short single-line message.
type CompileError struct {
	Pos int
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("lyd: compile error at byte %d: %s", e.Pos, e.Msg)
}

func newCompileError(pos int, format string, args ...any) *CompileError {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
