// errors.go — error taxonomy for the level compiler.
//
// Grammar violations in author-written text (placement specs, shuffle and
// subst specs, .des directives) are ordinary errors carrying the offending
// fragment; they abort one definition or one setter call, never the process.
// The sandbox surfaces its governance faults as the sentinels below so
// callers can distinguish a hostile script from a buggy one with errors.Is.
package mapdef

import (
	"errors"
	"fmt"
)

var (
	// ErrBounds reports a coordinate outside the grid.
	ErrBounds = errors.New("coordinate out of bounds")

	// ErrEmptyChunk reports a load of a chunk with no source and no
	// compiled form. Callers normally treat it as "nothing to run".
	ErrEmptyChunk = errors.New("empty script chunk")

	// ErrStackOverflow reports a script call that exceeded the configured
	// native/script nesting ceiling.
	ErrStackOverflow = errors.New("script call depth exceeded")

	// ErrThrottled reports a script aborted after exhausting its
	// voluntary-sleep budget.
	ErrThrottled = errors.New("script exceeded execution budget")

	// ErrOutOfMemory reports a script aborted because the interpreter
	// crossed its memory ceiling.
	ErrOutOfMemory = errors.New("script exceeded memory ceiling")

	// ErrShuttingDown reports a script invocation on a sandbox that has
	// begun orderly teardown.
	ErrShuttingDown = errors.New("script engine shutting down")
)

// ScriptError is an engine-reported fault, with the message already rewritten
// through the owning chunk's line mapping when one was available.
type ScriptError struct {
	Context string // chunk context tag ("prelude", "validate", ...)
	Msg     string // rewritten, author-facing message
}

func (e *ScriptError) Error() string {
	if e.Context == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Context, e.Msg)
}

// SerializationError marks a corrupt or truncated cache record. It is fatal
// to loading that one map, not to the whole collection.
type SerializationError struct {
	File string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("bad map cache %s: %v", e.File, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// parseErr builds a grammar error carrying the offending fragment.
func parseErr(what, frag string) error {
	return fmt.Errorf("bad %s spec: %q", what, frag)
}
