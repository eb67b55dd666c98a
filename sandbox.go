// sandbox.go — governed embedding of the Lua interpreter.
//
// OVERVIEW
// ========
// A Sandbox owns exactly one embedded interpreter state and bounds what a
// map script can do to the host:
//
//   - Call depth. Native→script→native nesting (mixed depth) and
//     script-only nesting are tracked separately; exceeding either ceiling
//     fails the call with ErrStackOverflow instead of recursing without
//     bound.
//   - Throughput. Native trampolines report execution units through Tick;
//     each time the unit threshold is crossed the sandbox voluntarily
//     sleeps, capping how much CPU one script can monopolize, and after a
//     bounded number of sleeps the script is aborted with ErrThrottled.
//   - Memory. The interpreter runs with a bounded registry, and Tick
//     periodically compares the heap against a baseline taken at
//     construction; crossing the ceiling aborts the script with a Lua
//     error the host survives (ErrOutOfMemory at the wrapper boundary).
//   - Teardown. Once ShutDown is called, further invocations on the
//     wrapper short-circuit to ErrShuttingDown, so callbacks still in
//     flight cannot re-enter a dying interpreter.
//
// Native trampolines registered with the engine are invoked with only the
// low-level interpreter state in hand, so a process-wide registry maps each
// live state back to its owning Sandbox (SandboxFor). Entries are added at
// construction and removed at Close; the registry never outlives its
// wrappers.
//
// CONCURRENCY
// ===========
// A Sandbox is single-threaded cooperative: one logical thread uses the
// interpreter at a time, and the only "suspension" is the throttle sleep.
// Run independent map definitions concurrently only with one Sandbox each.
package mapdef

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
	luaparse "github.com/yuin/gopher-lua/parse"
)

var log = logrus.StandardLogger()

// Governance defaults. All are per-Sandbox fields and may be tuned after
// construction, before the first call.
const (
	DefaultMaxMixedCallDepth = 100
	DefaultMaxLuaCallDepth   = 100
	DefaultThrottleUnits     = 50000
	DefaultThrottleSleep     = 2 * time.Millisecond
	MaxThrottleSleeps        = 100
	DefaultMemoryCeiling     = 48 << 20

	memCheckInterval = 256 // ticks between heap estimates
)

// Raised inside the interpreter; mapped back to sentinels at the wrapper
// boundary.
const (
	throttledMarker = "script throttled"
	oomMarker       = "script memory ceiling"
)

// Sandbox wraps one interpreter state with call-depth, throughput and
// memory governance.
type Sandbox struct {
	L *lua.LState

	// Managed marks a sandbox running untrusted map scripts. An unmanaged
	// sandbox skips throttling (used for trusted host-side helpers).
	Managed bool

	// ShuttingDown short-circuits further invocations once set.
	ShuttingDown bool

	// Error is the raw message of the most recent engine fault.
	Error string

	MaxMixedCallDepth int
	MaxLuaCallDepth   int
	ThrottleUnitLines int
	ThrottleSleep     time.Duration
	MemoryCeiling     uint64

	mixedCallDepth  int
	luaCallDepth    int
	throttleUnits   int
	nThrottleSleeps int
	ticks           int
	memBaseline     uint64
}

// The process-wide state→wrapper registry. Insert on construct, erase on
// destruct; never outlives its wrappers.
var (
	sandboxMu  sync.Mutex
	sandboxFor = map[*lua.LState]*Sandbox{}
)

// SandboxFor recovers the owning wrapper from a low-level interpreter
// state. Trampolines call it because the engine's call convention has no
// channel for host user data.
func SandboxFor(L *lua.LState) *Sandbox {
	sandboxMu.Lock()
	defer sandboxMu.Unlock()
	return sandboxFor[L]
}

// NewSandbox creates a fresh interpreter with only the safe libraries
// opened and registers it in the wrapper registry.
func NewSandbox(managed bool) *Sandbox {
	L := lua.NewState(lua.Options{
		CallStackSize:       256,
		RegistrySize:        1024 * 8,
		RegistryMaxSize:     1024 * 64,
		RegistryGrowStep:    32,
		SkipOpenLibs:        true,
		IncludeGoStackTrace: false,
	})
	s := &Sandbox{
		L:                 L,
		Managed:           managed,
		MaxMixedCallDepth: DefaultMaxMixedCallDepth,
		MaxLuaCallDepth:   DefaultMaxLuaCallDepth,
		ThrottleUnitLines: DefaultThrottleUnits,
		ThrottleSleep:     DefaultThrottleSleep,
		MemoryCeiling:     DefaultMemoryCeiling,
	}
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.memBaseline = ms.HeapAlloc

	sandboxMu.Lock()
	sandboxFor[L] = s
	sandboxMu.Unlock()
	return s
}

// Close begins orderly teardown: the sandbox refuses further calls, leaves
// the registry, and the interpreter state is released.
func (s *Sandbox) Close() {
	s.ShuttingDown = true
	sandboxMu.Lock()
	delete(sandboxFor, s.L)
	sandboxMu.Unlock()
	s.L.Close()
}

// --- call-depth and throttle bookkeeping ---

func (s *Sandbox) enter() error {
	if s.ShuttingDown {
		return ErrShuttingDown
	}
	if s.mixedCallDepth+1 > s.MaxMixedCallDepth {
		return fmt.Errorf("%w: mixed depth %d", ErrStackOverflow, s.mixedCallDepth)
	}
	s.mixedCallDepth++
	if s.mixedCallDepth == 1 {
		s.throttleUnits = 0
		s.nThrottleSleeps = 0
	}
	return nil
}

func (s *Sandbox) leave() { s.mixedCallDepth-- }

// MixedCallDepth is the current native→script→native nesting depth.
func (s *Sandbox) MixedCallDepth() int { return s.mixedCallDepth }

// LuaCallDepth is the current script-only nesting depth.
func (s *Sandbox) LuaCallDepth() int { return s.luaCallDepth }

// Tick reports execution units consumed by a native trampoline. Must be
// called from inside an engine invocation: budget exhaustion is raised as a
// script error that the enclosing protected call surfaces. Unmanaged
// sandboxes are never throttled.
func (s *Sandbox) Tick(units int) {
	if !s.Managed || s.ShuttingDown {
		return
	}
	s.ticks++
	if s.MemoryCeiling > 0 && s.ticks%memCheckInterval == 0 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		if ms.HeapAlloc > s.memBaseline && ms.HeapAlloc-s.memBaseline > s.MemoryCeiling {
			log.WithField("heap", ms.HeapAlloc).Warn("map script crossed memory ceiling")
			s.L.RaiseError(oomMarker)
			return
		}
	}
	s.throttleUnits += units
	if s.throttleUnits < s.ThrottleUnitLines {
		return
	}
	s.throttleUnits = 0
	s.nThrottleSleeps++
	if s.nThrottleSleeps > MaxThrottleSleeps {
		log.Warn("map script exceeded throttle budget, aborting")
		s.L.RaiseError(throttledMarker)
		return
	}
	log.WithField("sleeps", s.nThrottleSleeps).Debug("throttling map script")
	time.Sleep(s.ThrottleSleep)
}

// wrapEngineErr maps an engine-surfaced fault back to the wrapper's
// sentinels and records the raw message.
func (s *Sandbox) wrapEngineErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	s.Error = msg
	switch {
	case strings.Contains(msg, throttledMarker):
		return fmt.Errorf("%v: %w", msg, ErrThrottled)
	case strings.Contains(msg, oomMarker):
		return fmt.Errorf("%v: %w", msg, ErrOutOfMemory)
	case strings.Contains(msg, "stack overflow"):
		return fmt.Errorf("%v: %w", msg, ErrStackOverflow)
	}
	return err
}

// --- engine invocation primitives ---

// compileProto parses and compiles text under the given chunk name.
func (s *Sandbox) compileProto(text, name string) (*lua.FunctionProto, error) {
	ast, err := luaparse.Parse(strings.NewReader(text), name)
	if err != nil {
		return nil, err
	}
	return lua.Compile(ast, name)
}

// CheckSyntax parses code without running it.
func (s *Sandbox) CheckSyntax(code string) error {
	_, err := luaparse.Parse(strings.NewReader(code), "=stdin")
	return err
}

// protectedCall invokes fn with args under the script-depth ceiling,
// returning nret results.
func (s *Sandbox) protectedCall(fn *lua.LFunction, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	if s.ShuttingDown {
		return nil, ErrShuttingDown
	}
	if s.luaCallDepth+1 > s.MaxLuaCallDepth {
		return nil, fmt.Errorf("%w: script depth %d", ErrStackOverflow, s.luaCallDepth)
	}
	s.luaCallDepth++
	defer func() { s.luaCallDepth-- }()

	s.L.Push(fn)
	for _, a := range args {
		s.L.Push(a)
	}
	if err := s.L.PCall(len(args), nret, nil); err != nil {
		return nil, s.wrapEngineErr(err)
	}
	if nret == 0 {
		return nil, nil
	}
	top := s.L.GetTop()
	out := make([]lua.LValue, 0, nret)
	for i := top - nret + 1; i <= top; i++ {
		out = append(out, s.L.Get(i))
	}
	s.L.Pop(nret)
	return out, nil
}

// ExecString compiles and runs code under the given context tag.
func (s *Sandbox) ExecString(code, context string) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	proto, err := s.compileProto(code, fmt.Sprintf("[string %q]", context))
	if err != nil {
		s.Error = err.Error()
		return err
	}
	_, err = s.protectedCall(s.L.NewFunctionFromProto(proto), 0)
	return err
}

// CallFnValues calls the named global function with already-built engine
// values, returning nret results.
func (s *Sandbox) CallFnValues(fn string, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()
	g := s.L.GetGlobal(fn)
	f, ok := g.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("no such function: %s", fn)
	}
	return s.protectedCall(f, nret, args...)
}

// CallFn calls a named global function with positional arguments described
// by a compact format string of primitive kinds:
//
//	b bool, i int, n float64, s string, m *MapDef
//
// It discards results; use CallBooleanFn for the boolean-result form.
func (s *Sandbox) CallFn(fn, format string, args ...any) error {
	lvs, err := s.buildArgs(format, args)
	if err != nil {
		return err
	}
	_, err = s.CallFnValues(fn, 0, lvs...)
	return err
}

// CallBooleanFn is the boolean-result convenience form: engine faults
// record the error and yield def.
func (s *Sandbox) CallBooleanFn(def bool, fn, format string, args ...any) bool {
	lvs, err := s.buildArgs(format, args)
	if err != nil {
		s.Error = err.Error()
		return def
	}
	out, err := s.CallFnValues(fn, 1, lvs...)
	if err != nil {
		return def
	}
	return !lua.LVIsFalse(out[0])
}

func (s *Sandbox) buildArgs(format string, args []any) ([]lua.LValue, error) {
	if len(format) != len(args) {
		return nil, fmt.Errorf("format %q wants %d args, got %d", format, len(format), len(args))
	}
	out := make([]lua.LValue, 0, len(args))
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case 'b':
			v, ok := args[i].(bool)
			if !ok {
				return nil, fmt.Errorf("arg %d: want bool", i)
			}
			out = append(out, lua.LBool(v))
		case 'i':
			v, ok := args[i].(int)
			if !ok {
				return nil, fmt.Errorf("arg %d: want int", i)
			}
			out = append(out, lua.LNumber(v))
		case 'n':
			v, ok := args[i].(float64)
			if !ok {
				return nil, fmt.Errorf("arg %d: want float64", i)
			}
			out = append(out, lua.LNumber(v))
		case 's':
			v, ok := args[i].(string)
			if !ok {
				return nil, fmt.Errorf("arg %d: want string", i)
			}
			out = append(out, lua.LString(v))
		case 'm':
			v, ok := args[i].(*MapDef)
			if !ok {
				return nil, fmt.Errorf("arg %d: want *MapDef", i)
			}
			out = append(out, pushableMap(s.L, v))
		default:
			return nil, fmt.Errorf("bad format char %q", format[i])
		}
	}
	return out, nil
}
