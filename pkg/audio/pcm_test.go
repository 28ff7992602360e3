package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFloatTo16BitPCM(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []int16
	}{
		{
			name: "mixed range",
			in:   []float32{0.0, 1.0, -1.0, 0.5, -0.25},
			want: []int16{0, 32767, -32768, 16383, -8192},
		},
		{
			name: "all zero",
			in:   []float32{0, 0, 0},
			want: []int16{0, 0, 0},
		},
		{
			name: "empty",
			in:   []float32{},
			want: []int16{},
		},
		{
			name: "saturates out of range",
			in:   []float32{1.5, -2.0, 1e9, -1e9},
			want: []int16{32767, -32768, 32767, -32768},
		},
		{
			name: "near full scale truncates",
			in:   []float32{0.99999, -0.99999},
			want: []int16{32766, -32767},
		},
		{
			name: "tiny values round toward zero",
			in:   []float32{1e-9, -1e-9},
			want: []int16{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FloatTo16BitPCM(tt.in)
			if len(got) != len(tt.in) {
				t.Fatalf("length mismatch: got %d, want %d", len(got), len(tt.in))
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FloatTo16BitPCM(%v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestFloatTo16BitPCMNilInput(t *testing.T) {
	got := FloatTo16BitPCM(nil)
	if got == nil {
		t.Fatal("expected non-nil empty slice for nil input")
	}
	if len(got) != 0 {
		t.Errorf("expected empty output, got %d samples", len(got))
	}
}

func TestFloatTo16BitPCMNonFinite(t *testing.T) {
	in := []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))}
	want := []int16{0, 32767, -32768}
	if diff := cmp.Diff(want, FloatTo16BitPCM(in)); diff != "" {
		t.Errorf("non-finite mismatch (-want +got):\n%s", diff)
	}
}

func TestInt16ToBytes(t *testing.T) {
	got := Int16ToBytes([]int16{1, -1, 32767, -32768})
	want := []byte{0x01, 0x00, 0xFF, 0xFF, 0xFF, 0x7F, 0x00, 0x80}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Int16ToBytes mismatch (-want +got):\n%s", diff)
	}
}

func TestBytesToFloat32(t *testing.T) {
	want := []float32{0, 0.5, -1}
	buf := make([]byte, len(want)*4+3) // trailing partial sample
	for i, f := range want {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}

	got := BytesToFloat32(buf)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BytesToFloat32 mismatch (-want +got):\n%s", diff)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("expected 0 for empty chunk, got %f", got)
	}

	constant := make([]int16, 64)
	for i := range constant {
		constant[i] = 16384
	}
	got := RMS(Int16ToBytes(constant))
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected RMS 0.5, got %f", got)
	}

	silence := Int16ToBytes(make([]int16, 32))
	if got := RMS(silence); got != 0 {
		t.Errorf("expected RMS 0 for silence, got %f", got)
	}
}
