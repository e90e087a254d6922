// Package vmerrors holds the error types shared by pkg/vmbc and pkg/vmast:
// a RuntimeError carrying a stack trace for ordinary failures (spec §4.7's
// doesNotUnderstand:/error: surface), and NonLocalReturn, the Go error
// value both backends propagate up their dispatch call stack to implement
// a block's `^` returning from its home method rather than from the
// block itself.
package vmerrors

import (
	"fmt"
	"strings"

	"github.com/kristofer/smog/pkg/gc"
)

// StackFrame describes one call-stack entry at the point an error was
// raised, for RuntimeError's trace.
type StackFrame struct {
	Name       string // receiver class + selector, e.g. "Counter>>increment"
	Selector   string
	SourceLine int
	SourceCol  int
}

// RuntimeError is the VM-level failure both backends raise for
// doesNotUnderstand:. Primitive failures (an out-of-bounds index, a
// wrong argument type) come back as plain errors instead.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func New(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			f := e.StackTrace[i]
			b.WriteString(fmt.Sprintf("\n  at %s", f.Name))
			if f.Selector != "" {
				b.WriteString(fmt.Sprintf(" (selector: %s)", f.Selector))
			}
			if f.SourceLine > 0 {
				b.WriteString(fmt.Sprintf(" [line %d:%d]", f.SourceLine, f.SourceCol))
			}
		}
	}
	return b.String()
}

// NonLocalReturn carries a block's `^value` up through the dynamic call
// chain until it reaches the activation of Target, the method frame the
// block was lexically defined inside (object.Block.HomeFrame()). Every
// call site that dispatches a method or evaluates a block (pkg/vmbc's
// send loop, pkg/vmast's Eval) must check an error it gets back for a
// *NonLocalReturn before propagating it further: if Target is the frame that
// call site itself just activated, the value becomes that call's normal
// result instead of a further propagated error.
//
// If the dynamic chain unwinds past Target without a match — the method
// the block belonged to has already returned — Target's frame is dead
// and the return has escaped; the caller sends #escapedBlock: to the
// block's home receiver instead (spec §4.7).
type NonLocalReturn struct {
	Value  uint64 // value.Value.Bits()
	Target gc.Ref // the home Frame this return must reach
}

func (n *NonLocalReturn) Error() string { return "non-local return" }
