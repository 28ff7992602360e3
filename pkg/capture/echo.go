package capture

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// EchoMode selects how the suppressor treats microphone input captured while
// the avatar is talking.
type EchoMode string

const (
	// EchoMute drops all input while playback is recent. Suits open speakers
	// where the room smears the avatar's voice beyond recognition.
	EchoMute EchoMode = "mute"
	// EchoCorrelate drops only input that matches the played audio, so the user
	// can still talk over the avatar.
	EchoCorrelate EchoMode = "correlate"
	// EchoOff disables suppression.
	EchoOff EchoMode = "off"
)

// EchoSuppressor remembers what the avatar just played and flags microphone
// chunks that are the avatar hearing itself. All PCM is 16-bit LE mono at the
// device rate.
type EchoSuppressor struct {
	mu         sync.Mutex
	mode       EchoMode
	played     bytes.Buffer
	maxPlayed  int
	threshold  float64
	tail       time.Duration
	lastPlayed time.Time

	now func() time.Time
}

// NewEchoSuppressor keeps about two seconds of played audio for comparison and
// treats input as echo for 1.2s after the last played chunk.
func NewEchoSuppressor(sampleRate int, mode EchoMode) *EchoSuppressor {
	return &EchoSuppressor{
		mode:      mode,
		maxPlayed: sampleRate * 4,
		threshold: 0.55,
		tail:      1200 * time.Millisecond,
		now:       time.Now,
	}
}

func (e *EchoSuppressor) Mode() EchoMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *EchoSuppressor) SetMode(mode EchoMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
}

// SetThreshold sets the correlation above which input counts as echo. Values
// outside [0, 1] are ignored.
func (e *EchoSuppressor) SetThreshold(threshold float64) {
	if threshold < 0 || threshold > 1 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threshold = threshold
}

// RecordPlayedAudio stores a chunk that was just handed to the speakers.
func (e *EchoSuppressor) RecordPlayedAudio(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == EchoOff {
		return
	}

	e.played.Write(chunk)
	e.lastPlayed = e.now()
	if e.played.Len() > e.maxPlayed {
		data := e.played.Bytes()
		keep := make([]byte, e.maxPlayed)
		copy(keep, data[len(data)-e.maxPlayed:])
		e.played.Reset()
		e.played.Write(keep)
	}
}

// IsEcho reports whether a microphone chunk should be discarded.
func (e *EchoSuppressor) IsEcho(input []byte) bool {
	if len(input) == 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == EchoOff || e.lastPlayed.IsZero() || e.now().Sub(e.lastPlayed) > e.tail {
		return false
	}
	if e.mode == EchoMute {
		return true
	}

	in := unitSamples(input)
	ref := unitSamples(e.played.Bytes())
	if tailCorrelation(in, ref) > e.threshold {
		return true
	}
	// rectified envelopes survive the phase shifts a room adds to sibilants
	return envelopeCorrelation(in, ref, 8) > e.threshold+0.05
}

// ClearEchoBuffer forgets played audio, so input is accepted again right away.
func (e *EchoSuppressor) ClearEchoBuffer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.played.Reset()
	e.lastPlayed = time.Time{}
}

func unitSamples(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}

func energy(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return sum
}

// tailCorrelation compares input with the most recently played samples and
// returns a normalized correlation in [0, 1].
func tailCorrelation(in, ref []float64) float64 {
	n := min(len(in), len(ref))
	if n == 0 {
		return 0
	}
	in = in[:n]
	ref = ref[len(ref)-n:]

	inEnergy, refEnergy := energy(in), energy(ref)
	if inEnergy == 0 || refEnergy == 0 {
		return 0
	}

	var dot float64
	for i := range in {
		dot += in[i] * ref[i]
	}
	return math.Max(0, math.Min(1, dot/math.Sqrt(inEnergy*refEnergy)))
}

func envelope(samples []float64, decimation int) []float64 {
	env := make([]float64, len(samples)/decimation)
	for i := range env {
		for _, s := range samples[i*decimation : (i+1)*decimation] {
			env[i] += math.Abs(s)
		}
	}
	return env
}

// envelopeCorrelation slides the input envelope across the played envelope
// and returns the best Pearson correlation found.
func envelopeCorrelation(in, ref []float64, decimation int) float64 {
	inEnv := envelope(in, decimation)
	refEnv := envelope(ref, decimation)
	n := min(len(inEnv), len(refEnv))
	if n == 0 {
		return 0
	}
	inEnv = inEnv[:n]

	var inMean float64
	for _, v := range inEnv {
		inMean += v
	}
	inMean /= float64(n)

	var inVar float64
	for i := range inEnv {
		inEnv[i] -= inMean
		inVar += inEnv[i] * inEnv[i]
	}
	if inVar <= 0 {
		return 0
	}

	stride := max(n/4, 2)
	var best float64
	for pos := 0; pos+n <= len(refEnv); pos += stride {
		seg := refEnv[pos : pos+n]
		var segMean float64
		for _, v := range seg {
			segMean += v
		}
		segMean /= float64(n)

		var dot, segVar float64
		for i, v := range seg {
			d := v - segMean
			dot += inEnv[i] * d
			segVar += d * d
		}
		if segVar > 0 {
			best = math.Max(best, dot/math.Sqrt(inVar*segVar))
		}
	}
	return best
}
