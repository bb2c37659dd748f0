package lua

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.CPULimit != 10_000_000 {
		t.Errorf("expected CPULimit 10000000, got %d", config.CPULimit)
	}
	if config.MemoryLimit != 50*1024*1024 {
		t.Errorf("expected MemoryLimit %d, got %d", 50*1024*1024, config.MemoryLimit)
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    map[string]string
		wantErr string
	}{
		{name: "string", src: `return "hello"`, want: map[string]string{"text": "hello"}},
		{name: "integer", src: `return 42`, want: map[string]string{"text": "42"}},
		{name: "nil", src: `local x = 1`, want: map[string]string{"text": ""}},
		{name: "string library", src: `return string.upper("abc") .. string.rep("-", 2)`, want: map[string]string{"text": "ABC--"}},
		{
			name: "table",
			src:  `return {text = "t", state = "warning", icon = "cpu", n = 3, on = true, [1] = "skipped"}`,
			want: map[string]string{"text": "t", "state": "warning", "icon": "cpu", "n": "3", "on": "true"},
		},
		{name: "nested tables are dropped", src: `return {text = "x", sub = {1}}`, want: map[string]string{"text": "x"}},
		{name: "function result", src: `return function() end`, wantErr: "string or a table"},
		{name: "syntax error", src: `return (`, wantErr: "failed to load"},
		{name: "runtime error", src: `error("boom")`, wantErr: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(DefaultConfig())
			defer r.Close()

			got, err := r.Eval(context.Background(), tt.src)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Eval() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Eval() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSandboxRemovesUnsafeGlobals(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()

	for _, expr := range []string{"io", "require", "dofile", "loadfile", "load", "os.execute", "os.remove", "os.exit"} {
		got, err := r.Eval(context.Background(), "return tostring("+expr+" == nil)")
		if err != nil {
			t.Fatalf("Eval(%s) error = %v", expr, err)
		}
		if got["text"] != "true" {
			t.Errorf("%s is reachable from the sandbox", expr)
		}
	}

	got, err := r.Eval(context.Background(), `return type(os.time())`)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got["text"] != "number" {
		t.Errorf("os.time() type = %q, want number", got["text"])
	}
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()

	chunk, err := r.Load("counter", `count = (count or 0) + 1; return count`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for want := 1; want <= 3; want++ {
		got, err := r.Run(context.Background(), chunk)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got["text"] != string(rune('0'+want)) {
			t.Errorf("run %d: text = %q", want, got["text"])
		}
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(DefaultConfig())
	defer r.Close()

	got, err := r.Eval(context.Background(), `return barstatus.read_file("`+path+`")`)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got["text"] != "42\n" {
		t.Errorf("read_file = %q, want %q", got["text"], "42\n")
	}

	got, err = r.Eval(context.Background(), `local v, err = barstatus.read_file("/nonexistent/file"); return {text = tostring(v), err = err}`)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got["text"] != "nil" || got["err"] == "" {
		t.Errorf("read_file of a missing file = %v, want nil and a message", got)
	}
}

func TestExec(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()

	got, err := r.Eval(context.Background(), `return barstatus.exec("echo hi")`)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got["text"] != "hi\n" {
		t.Errorf("exec = %q, want %q", got["text"], "hi\n")
	}

	got, err = r.Eval(context.Background(), `local v, err = barstatus.exec("exit 1"); return {text = tostring(v), err = err}`)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got["text"] != "nil" || got["err"] == "" {
		t.Errorf("failing exec = %v, want nil and a message", got)
	}
}
