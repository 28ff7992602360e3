package audio

import (
	"encoding/binary"
	"math"
)

// FloatTo16BitPCM converts float samples in the nominal range [-1.0, 1.0] to
// signed 16-bit PCM. Non-negative samples scale by 32767 and negative samples
// by 32768, so both ends of the int16 range are reachable. Samples at or past
// the nominal range saturate instead of wrapping. The result always has the
// same length as the input and is never nil.
func FloatTo16BitPCM(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = floatToInt16(s)
	}
	return out
}

func floatToInt16(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= 1:
		return math.MaxInt16
	case v <= -1:
		return math.MinInt16
	case v < 0:
		// truncates toward zero
		return int16(v * 32768)
	default:
		return int16(v * 32767)
	}
}

// Int16ToBytes serializes samples as little-endian 16-bit PCM.
func Int16ToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToFloat32 decodes little-endian IEEE-754 float32 frames, as delivered
// by capture devices opened with a 32-bit float format. A trailing partial
// sample is ignored.
func BytesToFloat32(b []byte) []float32 {
	samples := make([]float32, len(b)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return samples
}

// RMS returns the root mean square energy of a 16-bit little-endian PCM chunk,
// normalized to [0, 1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		f := float64(sample) / 32768.0
		sum += f * f
	}

	return math.Sqrt(sum / float64(n))
}
