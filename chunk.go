// chunk.go — script chunks: authored Lua with line-remapped diagnostics.
//
// OVERVIEW
// ========
// A Chunk stores one unit of author-written script in exactly one of three
// states: Empty, Source (text plus the first authored line number), or
// Compiled. Compiling is a one-way, memoizing transition: the source text is
// discarded and the canonical compiled payload kept; recompiling an
// already-compiled chunk is a no-op success. The embedded engine has no
// portable bytecode dump, so the compiled payload is the canonical text the
// function prototype was compiled from; the prototype itself is memoized in
// memory and never serialized.
//
// DIAGNOSTIC LINE REMAPPING
// =========================
// Chunks are assembled from fragments of a larger file, so the engine's
// internal line numbers (counted from the start of the chunk) differ from
// the authored coordinates. Every chunk is loaded under the context name
// `[string "<context>"]`; RewriteChunkErrors finds each line of an engine
// error message carrying that tag, rewrites the internal line number to
// internal + first - 1, and swaps the tag for the authored file name. The
// first matching line becomes the message prefix; later matches are
// appended, each independently rewritten.
//
// BINARY FORMAT
// =============
// tag:u8 {Empty=0, Source=1, Compiled=2}; for non-Empty: payload string
// (capped at LuaChunkMaxSize), file name string, first-line i32.
package mapdef

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ChunkState tags the persisted representation.
type ChunkState byte

const (
	ChunkEmpty    ChunkState = 0
	ChunkSource   ChunkState = 1
	ChunkCompiled ChunkState = 2
)

// LuaChunkMaxSize caps a persisted chunk payload.
const LuaChunkMaxSize = 512 * 1024

// Chunk holds one prelude/main/validate/veto script.
type Chunk struct {
	context  string
	file     string
	src      string
	compiled string
	proto    *lua.FunctionProto

	first, last int
	lastError   string
}

// NewChunk builds an empty chunk with the given context tag (the chunk
// identity the interpreter uses in its diagnostics).
func NewChunk(context string) Chunk {
	c := Chunk{context: context}
	c.Clear()
	return c
}

// Clear resets the chunk to the Empty state, keeping only the context tag.
func (c *Chunk) Clear() {
	c.file = ""
	c.src = ""
	c.compiled = ""
	c.proto = nil
	c.first, c.last = -1, -1
	c.lastError = ""
}

// Context returns the chunk's context tag.
func (c *Chunk) Context() string { return c.context }

// File returns the authored file name, if known.
func (c *Chunk) File() string { return c.file }

// SetFile records the authored file name used when rewriting diagnostics.
func (c *Chunk) SetFile(s string) { c.file = s }

// FirstLine is the authored line number of the chunk's first fragment, or
// -1 for an empty chunk.
func (c *Chunk) FirstLine() int { return c.first }

// State reports the persisted representation the chunk is in.
func (c *Chunk) State() ChunkState {
	switch {
	case c.compiled != "":
		return ChunkCompiled
	case !c.Empty():
		return ChunkSource
	default:
		return ChunkEmpty
	}
}

// Empty reports whether the chunk has neither source nor compiled form.
func (c *Chunk) Empty() bool {
	return c.compiled == "" && strings.TrimSpace(c.src) == ""
}

// Add appends one authored source fragment, padding with blank lines so
// engine-internal line numbers stay an offset away from authored ones.
func (c *Chunk) Add(line int, s string) {
	if c.first == -1 {
		c.first = line
	}
	if c.last != -1 && line != c.last {
		for l := c.last; l < line; l++ {
			c.src += "\n"
		}
	}
	c.src += " " + s
	c.last = line
}

// SetSource overwrites the Source state outright, clearing any compiled
// form.
func (c *Chunk) SetSource(s string, firstLine int) {
	c.src = s
	c.compiled = ""
	c.proto = nil
	c.first, c.last = firstLine, firstLine
}

// LastError returns the raw engine message from the most recent failed
// compile or run.
func (c *Chunk) LastError() string { return c.lastError }

// OrigError returns the last error rewritten to authored coordinates.
func (c *Chunk) OrigError() string {
	msg, _ := c.RewriteChunkErrors(c.lastError)
	return msg
}

// chunkName is the context string the engine embeds into its diagnostics.
func (c *Chunk) chunkName() string {
	return fmt.Sprintf("[string %q]", c.context)
}

// Compile performs the one-way Source → Compiled transition. Compiling an
// already-compiled chunk is a no-op success; compiling an empty chunk is
// ErrEmptyChunk.
func (c *Chunk) Compile(sb *Sandbox) error {
	if c.compiled != "" && c.proto != nil {
		return nil
	}
	text := c.compiled
	if text == "" {
		if c.Empty() {
			return ErrEmptyChunk
		}
		text = c.src
	}
	proto, err := sb.compileProto(text, c.chunkName())
	if err != nil {
		c.lastError = err.Error()
		return &ScriptError{Context: c.context, Msg: c.OrigError()}
	}
	c.proto = proto
	c.compiled = text
	c.src = ""
	return nil
}

// LoadFunction feeds the chunk to the engine's loader and returns the
// resulting function. Loading compiles as a side effect.
func (c *Chunk) LoadFunction(sb *Sandbox) (*lua.LFunction, error) {
	if c.Empty() {
		return nil, ErrEmptyChunk
	}
	if err := c.Compile(sb); err != nil {
		return nil, err
	}
	return sb.L.NewFunctionFromProto(c.proto), nil
}

// LoadCall loads the chunk and runs it. With a non-empty fn, the named
// global entry point is invoked with the chunk function as its argument
// instead. An empty chunk is a silent success.
func (c *Chunk) LoadCall(sb *Sandbox, fn string) error {
	f, err := c.LoadFunction(sb)
	if errors.Is(err, ErrEmptyChunk) {
		return nil
	}
	if err != nil {
		return err
	}
	if fn == "" {
		if err = sb.enter(); err == nil {
			_, err = sb.protectedCall(f, 0)
			sb.leave()
		}
	} else {
		_, err = sb.CallFnValues(fn, 0, lua.LValue(f))
	}
	if err != nil {
		c.lastError = err.Error()
		if isSandboxFault(err) {
			return err
		}
		return &ScriptError{Context: c.context, Msg: c.OrigError()}
	}
	return nil
}

// RewriteChunkErrors maps an engine error message back to authored
// coordinates. It reports whether the chunk's context tag was referenced.
func (c *Chunk) RewriteChunkErrors(s string) (string, bool) {
	marker := c.marker()
	if !strings.Contains(s, marker) {
		return s, false
	}
	lines := strings.Split(s, "\n")
	if strings.HasPrefix(s, marker) {
		// Runtime errors lead with the offending line; the traceback
		// follows. Rewrite every line that references the tag and keep
		// the rest verbatim.
		for i, ln := range lines {
			lines[i] = c.rewriteChunkPrefix(ln)
		}
		return strings.Join(lines, "\n"), true
	}
	if len(lines) == 1 {
		return c.rewriteChunkPrefix(lines[0]), true
	}
	out := lines[0]
	wrotePrefix := false
	for _, ln := range lines[1:] {
		if !strings.Contains(ln, marker) {
			continue
		}
		if !wrotePrefix {
			out = c.chunkPrefix(ln) + ": " + out
			wrotePrefix = true
		} else {
			out += "\n" + c.rewriteChunkPrefix(ln)
		}
	}
	return out, true
}

func (c *Chunk) marker() string {
	return `[string "` + c.context + `"]:`
}

// rewriteChunkPrefix rewrites one line: internal line number becomes
// internal + first - 1, and the context tag becomes the authored file name
// (or the tag itself when no file is known).
func (c *Chunk) rewriteChunkPrefix(line string) string {
	marker := c.marker()
	ps := strings.Index(line, marker)
	if ps < 0 {
		return line
	}
	lns := ps + len(marker)
	out := line
	if pe := strings.IndexByte(line[lns:], ':'); pe >= 0 {
		if n, err := strconv.Atoi(line[lns : lns+pe]); err == nil {
			out = line[:lns] + strconv.Itoa(n+c.first-1) + line[lns+pe:]
		}
	}
	name := c.file
	if name == "" {
		name = c.context
	}
	return out[:ps] + name + ":" + out[lns:]
}

// chunkPrefix extracts the "file:line" head of a rewritten line.
func (c *Chunk) chunkPrefix(line string) string {
	s := c.rewriteChunkPrefix(line)
	first := strings.IndexByte(s, ':')
	if first < 0 {
		return s
	}
	second := strings.IndexByte(s[first+1:], ':')
	if second < 0 {
		return s
	}
	return s[:first+1+second]
}

// Write serializes the chunk; see the binary format note in the file
// header.
func (c *Chunk) Write(w io.Writer) error {
	if c.Empty() {
		return writeByteTag(w, byte(ChunkEmpty))
	}
	if c.compiled != "" {
		if err := writeByteTag(w, byte(ChunkCompiled)); err != nil {
			return err
		}
		if err := writeString(w, c.compiled, LuaChunkMaxSize); err != nil {
			return err
		}
	} else {
		if err := writeByteTag(w, byte(ChunkSource)); err != nil {
			return err
		}
		if err := writeString(w, c.src, LuaChunkMaxSize); err != nil {
			return err
		}
	}
	if err := writeString(w, c.file, 0); err != nil {
		return err
	}
	return writeInt32(w, int32(c.first))
}

// Read deserializes a chunk written by Write, dispatching on the tag byte.
// An Empty chunk reads nothing further.
func (c *Chunk) Read(r io.Reader) error {
	c.Clear()
	tag, err := readByteTag(r)
	if err != nil {
		return err
	}
	switch ChunkState(tag) {
	case ChunkEmpty:
		return nil
	case ChunkSource:
		if c.src, err = readString(r, LuaChunkMaxSize); err != nil {
			return err
		}
	case ChunkCompiled:
		if c.compiled, err = readString(r, LuaChunkMaxSize); err != nil {
			return err
		}
	default:
		return fmt.Errorf("bad chunk tag %d", tag)
	}
	if c.file, err = readString(r, 0); err != nil {
		return err
	}
	n, err := readInt32(r)
	if err != nil {
		return err
	}
	c.first = int(n)
	c.last = c.first
	return nil
}

func isSandboxFault(err error) bool {
	return errors.Is(err, ErrStackOverflow) || errors.Is(err, ErrThrottled) ||
		errors.Is(err, ErrOutOfMemory) || errors.Is(err, ErrShuttingDown)
}
