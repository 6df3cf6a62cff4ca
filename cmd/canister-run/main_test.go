package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/canister-runtime/internal/wasmbin"
)

func writeActor(t *testing.T) string {
	t.Helper()
	i32 := api.ValueTypeI32
	b := wasmbin.NewModuleBuilder()
	appendReply := b.ImportFunc("ic0", "msg_reply_data_append", []api.ValueType{i32, i32}, nil)
	b.ImportMemory("env", "memory", wasmbin.Limits{Min: 1})
	b.Data(0, []byte("DIDL\x00\x00\x00\x00"))
	b.ExportFunc("canister_init", b.Func(nil, nil, nil, nil))
	b.ExportFunc("canister_query hello", b.Func(nil, nil, nil, wasmbin.Code(
		wasmbin.I32Const(0), wasmbin.I32Const(8), wasmbin.Call(appendReply))))

	path := filepath.Join(t.TempDir(), "actor.wasm")
	if err := os.WriteFile(path, b.Build(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Batch(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{writeActor(t)}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"Exports: canister_init, canister_query hello\n",
		"Reply hex: 44 49 44 4c 00 00 00 00\n",
		"  1. msg_reply_data_append(0, 8)\n",
		"\nDone\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestRun_MissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing.wasm")
	if code := run([]string{path}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stderr.String(), "wasm not found") {
		t.Errorf("stderr = %s", stderr.String())
	}
}

func TestRun_CompileError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wasm")
	if err := os.WriteFile(path, []byte("not wasm"), 0o600); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := run([]string{path}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d", code)
	}
}

func TestRun_BadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--arg-hex", "xyz"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit = %d", code)
	}
}
