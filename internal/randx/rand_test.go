package randx

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestBytes_Length(t *testing.T) {
	const n = 24
	buf := Bytes(n)
	if len(buf) != n {
		t.Fatalf("expected length %d, got %d", n, len(buf))
	}
}

func TestBytes_EntropyHint(t *testing.T) {
	const n = 32
	a := Bytes(n)
	b := Bytes(n)
	if bytes.Equal(a, b) {
		t.Logf("warning: two Bytes(%d) results are identical; extremely unlikely", n)
	}
}

func TestHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := HexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestHexString_ZeroSize(t *testing.T) {
	s, err := HexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestWipe_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	Wipe(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipe_NilSafe(t *testing.T) {
	Wipe(nil)
}
