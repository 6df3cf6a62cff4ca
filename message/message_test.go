package message

import (
	"bytes"
	"testing"
)

func TestMockPrincipal(t *testing.T) {
	p := MockPrincipal()
	if len(p) != PrincipalLen {
		t.Fatalf("len = %d", len(p))
	}
	if p[0] != 0x01 || p[31] != 0x02 {
		t.Errorf("principal = %x", p)
	}
	for i := 1; i < 31; i++ {
		if p[i] != 0 {
			t.Fatalf("byte %d = %d, want 0", i, p[i])
		}
	}
}

func TestNewContext_Defaults(t *testing.T) {
	c := NewContext(nil, nil)
	if !bytes.Equal(c.Caller, MockPrincipal()) {
		t.Errorf("Caller = %x", c.Caller)
	}
	if !bytes.Equal(c.Canister, MockPrincipal()) {
		t.Errorf("Canister = %x", c.Canister)
	}
	if !bytes.Equal(c.Argument, EmptyArgs) {
		t.Errorf("Argument = %x", c.Argument)
	}
	if len(c.MethodName) != 0 {
		t.Errorf("MethodName = %q", c.MethodName)
	}
}

func TestNewContext_CopiesIdentities(t *testing.T) {
	caller := []byte{9, 9}
	c := NewContext(caller, []byte{7})
	caller[0] = 0
	if c.Caller[0] != 9 {
		t.Error("context aliases caller slice")
	}
}

func TestContext_Reset(t *testing.T) {
	c := NewContext(nil, nil)
	c.SetReject(RejectCodeCanister, "no")

	c.Reset("greet", []byte{1, 2, 3})
	if string(c.MethodName) != "greet" {
		t.Errorf("MethodName = %q", c.MethodName)
	}
	if !bytes.Equal(c.Argument, []byte{1, 2, 3}) {
		t.Errorf("Argument = %x", c.Argument)
	}
	if c.Reject() != nil {
		t.Error("reject survived Reset")
	}

	c.Reset("", nil)
	if !bytes.Equal(c.Argument, EmptyArgs) {
		t.Errorf("nil argument should select EmptyArgs, got %x", c.Argument)
	}
}

func TestContext_Reject(t *testing.T) {
	c := NewContext(nil, nil)
	c.SetReject(RejectCodeCanister, "denied")
	r := c.Reject()
	if r == nil || r.Code != 4 || r.Message != "denied" {
		t.Errorf("Reject = %+v", r)
	}
}

func TestSlice(t *testing.T) {
	field := []byte("abcdef")

	tests := []struct {
		name         string
		offset, size uint64
		want         string
	}{
		{"full", 0, 6, "abcdef"},
		{"middle", 2, 2, "cd"},
		{"past end clamps", 4, 100, "ef"},
		{"offset at end", 6, 1, ""},
		{"offset beyond", 100, 1, ""},
		{"zero size", 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slice(field, tt.offset, tt.size); string(got) != tt.want {
				t.Errorf("Slice = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReply_Empty(t *testing.T) {
	var r Reply
	if r.Size() != 0 || r.Chunks() != 0 {
		t.Errorf("Size=%d Chunks=%d", r.Size(), r.Chunks())
	}
	if got := r.Bytes(); len(got) != 0 {
		t.Errorf("Bytes = %x", got)
	}
}

func TestReply_Concatenation(t *testing.T) {
	var r Reply
	parts := [][]byte{[]byte("DI"), []byte("DL"), {}, {0, 0, 0, 0}}
	var want []byte
	for _, p := range parts {
		r.Append(p)
		want = append(want, p...)
	}

	if r.Size() != uint64(len(want)) {
		t.Errorf("Size = %d, want %d", r.Size(), len(want))
	}
	if r.Chunks() != 3 {
		t.Errorf("Chunks = %d, want 3", r.Chunks())
	}
	if !bytes.Equal(r.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", r.Bytes(), want)
	}
}

func TestReply_ReadAtMatchesConcat(t *testing.T) {
	var r Reply
	r.Append([]byte("abc"))
	r.Append([]byte("d"))
	r.Append([]byte("efgh"))
	full := []byte("abcdefgh")

	for off := uint64(0); off <= 9; off++ {
		for n := uint64(0); n <= 10; n++ {
			got := r.ReadAt(off, n)
			var want []byte
			if off < uint64(len(full)) {
				end := off + n
				if end > uint64(len(full)) {
					end = uint64(len(full))
				}
				want = full[off:end]
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("ReadAt(%d, %d) = %q, want %q", off, n, got, want)
			}
		}
	}
}

func TestReply_AppendCopies(t *testing.T) {
	var r Reply
	src := []byte{1, 2}
	r.Append(src)
	src[0] = 9
	if r.Bytes()[0] != 1 {
		t.Error("reply aliases appended slice")
	}
}

func TestReply_Reset(t *testing.T) {
	var r Reply
	r.Append([]byte("x"))
	r.Reset()
	if r.Size() != 0 || r.Chunks() != 0 {
		t.Errorf("after Reset Size=%d Chunks=%d", r.Size(), r.Chunks())
	}
}
