package simd

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
)

// kernels lists every IndexAny implementation; the scalar loop is the
// reference the others must agree with.
var kernels = []struct {
	name string
	fn   func([]byte, byte, byte, byte, byte) int
}{
	{"scalar", IndexAnyScalar},
	{"swar", IndexAnySWAR},
	{"wide", IndexAnyWide},
}

func TestIndexAny_Basic(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		want  int
	}{
		{"empty", "", -1},
		{"no match", "abcdefgh", -1},
		{"comma first byte", ",abc", 0},
		{"comma mid", "abc,def", 3},
		{"newline", "abc\ndef", 3},
		{"carriage return", "abc\rdef", 3},
		{"quote", `abc"def`, 3},
		{"match at word boundary", "0123456,", 7},
		{"match after word boundary", "01234567,", 8},
		{"long run no match", strings.Repeat("x", 300), -1},
		{"long run late match", strings.Repeat("x", 300) + ",", 300},
		{"match inside second block", strings.Repeat("x", 70) + "\n" + strings.Repeat("x", 10), 70},
		{"first of several", "a,b\nc", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range kernels {
				got := k.fn([]byte(tt.data), ',', '"', '\r', '\n')
				if got != tt.want {
					t.Errorf("%s(%q) = %d, want %d", k.name, tt.data, got, tt.want)
				}
			}
		})
	}
}

// TestIndexAny_AllOffsets places a needle at every offset of a buffer
// spanning several blocks so word and block boundaries are all exercised.
func TestIndexAny_AllOffsets(t *testing.T) {
	const size = 200
	for off := 0; off < size; off++ {
		data := bytes.Repeat([]byte{'x'}, size)
		data[off] = ','
		for _, k := range kernels {
			if got := k.fn(data, ',', '"', '\r', '\n'); got != off {
				t.Fatalf("%s: needle at %d reported at %d", k.name, off, got)
			}
		}
	}
}

// TestIndexAny_RepeatedNeedle covers callers that search for fewer than
// four distinct bytes by repeating one.
func TestIndexAny_RepeatedNeedle(t *testing.T) {
	data := []byte(`plain text with a "quote somewhere`)
	want := bytes.IndexByte(data, '"')
	for _, k := range kernels {
		if got := k.fn(data, '"', '"', '"', '"'); got != want {
			t.Errorf("%s = %d, want %d", k.name, got, want)
		}
	}
}

// TestIndexAny_KernelAgreement cross-checks the vectorized kernels
// against the scalar reference on random data.
func TestIndexAny_KernelAgreement(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	alphabet := []byte("abc,\"\r\nxyz0123456789")

	for trial := 0; trial < 500; trial++ {
		n := rng.Intn(300)
		data := make([]byte, n)
		for i := range data {
			data[i] = alphabet[rng.Intn(len(alphabet))]
		}

		want := IndexAnyScalar(data, ',', '"', '\r', '\n')
		if got := IndexAnySWAR(data, ',', '"', '\r', '\n'); got != want {
			t.Fatalf("swar disagrees with scalar on %q: %d != %d", data, got, want)
		}
		if got := IndexAnyWide(data, ',', '"', '\r', '\n'); got != want {
			t.Fatalf("wide disagrees with scalar on %q: %d != %d", data, got, want)
		}
	}
}

func TestIndexAny_SelectedKernel(t *testing.T) {
	switch Kernel() {
	case "swar", "wide":
		// Either is valid; which one depends on the host CPU.
	default:
		t.Errorf("unexpected kernel %q", Kernel())
	}

	// The dispatched entry point must behave like the reference.
	data := []byte("field1,field2\nfield3")
	if got, want := IndexAny(data, ',', '"', '\r', '\n'), 6; got != want {
		t.Errorf("IndexAny = %d, want %d", got, want)
	}
}
