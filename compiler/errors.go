package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Compile errors
// ---------------------------------------------------------------------------

// Error is the single error type produced by compilation. Line is the
// 1-based statement counter active when the failure occurred: the function
// signature counts as line 1 and each body statement increments it.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[Line %d] %s", e.Line, e.Msg)
}

// errorf builds a compile error tagged with the current statement line.
func (c *Compiler) errorf(format string, args ...interface{}) error {
	return &Error{Line: c.line, Msg: fmt.Sprintf(format, args...)}
}
