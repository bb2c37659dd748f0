// Package lua runs the chunks of lua blocks in a sandboxed Golua runtime
// with CPU and memory limits.
package lua

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/arnodel/golua/lib"
	rt "github.com/arnodel/golua/runtime"

	"github.com/opd-ai/go-barstatus/internal/subprocess"
)

// Config contains the resource limits of a Runtime.
type Config struct {
	// CPULimit is the instruction limit of one chunk run. 0 means unlimited.
	CPULimit uint64
	// MemoryLimit is the allocation limit in bytes of one chunk run.
	// 0 means unlimited.
	MemoryLimit uint64
	// ExecTimeout bounds barstatus.exec commands.
	ExecTimeout time.Duration
	// ReadLimit is the largest file barstatus.read_file returns.
	ReadLimit int64
}

// DefaultConfig returns the limits used by lua blocks.
func DefaultConfig() Config {
	return Config{
		CPULimit:    10_000_000,
		MemoryLimit: 50 * 1024 * 1024,
		ExecTimeout: 10 * time.Second,
		ReadLimit:   1 << 20,
	}
}

// unsafeGlobals are removed from the environment after the standard
// library is loaded.
var unsafeGlobals = []string{"io", "require", "dofile", "loadfile", "load", "package", "debug", "collectgarbage"}

// Runtime wraps a Golua runtime restricted to the string, math and table
// libraries, os.time, os.date and os.clock, and the barstatus table.
type Runtime struct {
	config  Config
	runtime *rt.Runtime
	cleanup func()

	mu sync.Mutex
	// ctx is the context of the chunk being run, for barstatus.exec.
	ctx context.Context
}

// New creates a sandboxed Runtime. Lua print output is discarded.
func New(config Config) *Runtime {
	runtime := rt.New(io.Discard)
	cleanup := lib.LoadAll(runtime)

	r := &Runtime{
		config:  config,
		runtime: runtime,
		cleanup: cleanup,
		ctx:     context.Background(),
	}
	r.restrict()
	return r
}

func (r *Runtime) restrict() {
	env := r.runtime.GlobalEnv()
	for _, name := range unsafeGlobals {
		env.Set(rt.StringValue(name), rt.NilValue)
	}

	safeOS := rt.NewTable()
	if osTable, ok := env.Get(rt.StringValue("os")).TryTable(); ok {
		for _, name := range []string{"time", "date", "clock"} {
			safeOS.Set(rt.StringValue(name), osTable.Get(rt.StringValue(name)))
		}
	}
	env.Set(rt.StringValue("os"), rt.TableValue(safeOS))

	api := rt.NewTable()
	r.setFunction(api, "read_file", r.readFile, 1)
	r.setFunction(api, "exec", r.exec, 1)
	env.Set(rt.StringValue("barstatus"), rt.TableValue(api))
}

func (r *Runtime) setFunction(t *rt.Table, name string, fn rt.GoFunctionFunc, nArgs int) {
	goFunc := rt.NewGoFunction(fn, name, nArgs, false)
	rt.SolemnlyDeclareCompliance(rt.ComplyMemSafe|rt.ComplyCpuSafe, goFunc)
	t.Set(rt.StringValue(name), rt.FunctionValue(goFunc))
}

// readFile returns the contents of a file, or nil and a message.
func (r *Runtime) readFile(t *rt.Thread, c *rt.GoCont) (rt.Cont, error) {
	path, err := c.StringArg(0)
	if err != nil {
		return nil, fmt.Errorf("read_file: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return c.PushingNext(t.Runtime, rt.NilValue, rt.StringValue(err.Error())), nil
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, r.config.ReadLimit))
	if err != nil {
		return c.PushingNext(t.Runtime, rt.NilValue, rt.StringValue(err.Error())), nil
	}
	return c.PushingNext1(t.Runtime, rt.StringValue(string(data))), nil
}

// exec runs a shell command and returns its output, or nil and a message.
func (r *Runtime) exec(t *rt.Thread, c *rt.GoCont) (rt.Cont, error) {
	cmd, err := c.StringArg(0)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.config.ExecTimeout)
	defer cancel()
	out, err := subprocess.Output(ctx, cmd)
	if err != nil {
		return c.PushingNext(t.Runtime, rt.NilValue, rt.StringValue(err.Error())), nil
	}
	return c.PushingNext1(t.Runtime, rt.StringValue(out)), nil
}

// Chunk is a compiled Lua chunk.
type Chunk struct {
	name    string
	closure *rt.Closure
}

// Load compiles src. Globals set by a chunk persist between runs.
func (r *Runtime) Load(name, src string) (*Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	closure, err := r.runtime.CompileAndLoadLuaChunk(name, []byte(src), rt.TableValue(r.runtime.GlobalEnv()))
	if err != nil {
		return nil, fmt.Errorf("failed to load Lua code: %w", err)
	}
	return &Chunk{name: name, closure: closure}, nil
}

// Run executes chunk within the resource limits and converts its result.
// A returned string becomes "text". A returned table is flattened to its
// string keys with scalar values. Nil yields an empty text.
func (r *Runtime) Run(ctx context.Context, chunk *Chunk) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctx = ctx
	defer func() { r.ctx = context.Background() }()

	r.runtime.PushContext(rt.RuntimeContextDef{
		HardLimits: rt.RuntimeResources{
			Cpu:    r.config.CPULimit,
			Memory: r.config.MemoryLimit,
		},
	})
	defer r.runtime.PopContext()

	result, err := rt.Call1(r.runtime.MainThread(), rt.FunctionValue(chunk.closure))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", chunk.name, err)
	}
	return convert(result)
}

// Eval compiles and runs src once.
func (r *Runtime) Eval(ctx context.Context, src string) (map[string]string, error) {
	chunk, err := r.Load("eval", src)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, chunk)
}

func convert(v rt.Value) (map[string]string, error) {
	if v.IsNil() {
		return map[string]string{"text": ""}, nil
	}
	if s, ok := scalar(v); ok {
		return map[string]string{"text": s}, nil
	}
	t, ok := v.TryTable()
	if !ok {
		return nil, fmt.Errorf("chunk must return a string or a table")
	}
	out := make(map[string]string)
	for k, val, ok := t.Next(rt.NilValue); ok && !k.IsNil(); k, val, ok = t.Next(k) {
		key, isString := k.TryString()
		if !isString {
			continue
		}
		if s, isScalar := scalar(val); isScalar {
			out[key] = s
		}
	}
	return out, nil
}

// scalar renders strings, numbers and booleans.
func scalar(v rt.Value) (string, bool) {
	if s, ok := v.TryString(); ok {
		return s, true
	}
	if i, ok := v.TryInt(); ok {
		return strconv.FormatInt(i, 10), true
	}
	if f, ok := v.TryFloat(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	switch v {
	case rt.BoolValue(true):
		return "true", true
	case rt.BoolValue(false):
		return "false", true
	}
	return "", false
}

// Close releases the runtime.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cleanup != nil {
		r.cleanup()
		r.cleanup = nil
	}
}
