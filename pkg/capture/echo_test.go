package capture

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// sinePCM generates a 16-bit LE mono sine wave.
func sinePCM(freq float64, durationMs, sampleRate int, amp float64) []byte {
	n := sampleRate * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*32767)))
	}
	return buf
}

func attenuate(pcm []byte, gain float64) []byte {
	out := make([]byte, len(pcm))
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(float64(s)*gain)))
	}
	return out
}

func newTestEcho(clock *fakeClock, mode EchoMode) *EchoSuppressor {
	es := NewEchoSuppressor(44100, mode)
	es.now = clock.now
	return es
}

func TestEchoSuppressorCorrelate(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	es := newTestEcho(clock, EchoCorrelate)

	played := sinePCM(440, 500, 44100, 0.8)
	es.RecordPlayedAudio(played)

	// the last 20ms of what was played, picked up quieter by the microphone
	echo := attenuate(played[len(played)-882*2:], 0.25)
	if !es.IsEcho(echo) {
		t.Error("Expected attenuated playback to be detected as echo")
	}

	user := sinePCM(1200, 20, 44100, 0.8)
	if es.IsEcho(user) {
		t.Error("Expected a different voice not to be treated as echo")
	}

	if es.IsEcho(nil) {
		t.Error("Expected empty input never to be echo")
	}
}

func TestEchoSuppressorTailExpires(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	es := newTestEcho(clock, EchoMute)

	if es.IsEcho(loudChunk(4)) {
		t.Fatal("Expected no echo before anything was played")
	}

	es.RecordPlayedAudio(loudChunk(4))
	if !es.IsEcho(loudChunk(4)) {
		t.Error("Expected input to be muted while playback is recent")
	}

	clock.advance(time.Second)
	if !es.IsEcho(loudChunk(4)) {
		t.Error("Expected input to stay muted within the echo tail")
	}

	clock.advance(time.Second)
	if es.IsEcho(loudChunk(4)) {
		t.Error("Expected input to pass once the echo tail has expired")
	}
}

func TestEchoSuppressorClearAndOff(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	es := newTestEcho(clock, EchoMute)

	es.RecordPlayedAudio(loudChunk(4))
	es.ClearEchoBuffer()
	if es.IsEcho(loudChunk(4)) {
		t.Error("Expected input to pass right after ClearEchoBuffer")
	}

	es.SetMode(EchoOff)
	es.RecordPlayedAudio(loudChunk(4))
	if es.IsEcho(loudChunk(4)) {
		t.Error("Expected no suppression when disabled")
	}
	if es.Mode() != EchoOff {
		t.Errorf("Expected mode off, got %s", es.Mode())
	}
}

func TestEchoSuppressorBoundsPlayedAudio(t *testing.T) {
	es := NewEchoSuppressor(100, EchoCorrelate)
	for i := 0; i < 10; i++ {
		es.RecordPlayedAudio(loudChunk(100))
	}
	if n := es.played.Len(); n != 400 {
		t.Errorf("Expected played buffer capped at 400 bytes, got %d", n)
	}

	es.SetThreshold(2)
	if es.threshold != 0.55 {
		t.Errorf("Expected out of range threshold to be ignored, got %v", es.threshold)
	}
	es.SetThreshold(0.7)
	if es.threshold != 0.7 {
		t.Errorf("Expected threshold 0.7, got %v", es.threshold)
	}
}

func TestRecorderDropsOwnPlayback(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	sink := &utteranceSink{}
	rec := NewRecorder(100, sink.add)
	rec.SetVAD(newTestVAD(clock))
	es := newTestEcho(clock, EchoMute)
	rec.SetEchoSuppressor(es)
	rec.Start()

	// the avatar talks: everything the microphone hears is its own voice
	es.RecordPlayedAudio(loudChunk(4))
	for i := 0; i < 5; i++ {
		rec.FeedPCM(loudChunk(4))
	}
	clock.advance(300 * time.Millisecond)
	rec.FeedPCM(silentChunk(4))
	rec.FeedPCM(silentChunk(4))

	if n := len(sink.all()); n != 0 {
		t.Fatalf("Expected playback captured by the microphone to be dropped, got %d utterances", n)
	}

	// interrupted playback: the user's next words are heard again
	es.ClearEchoBuffer()
	for i := 0; i < 3; i++ {
		rec.FeedPCM(loudChunk(4))
	}
	rec.FeedPCM(silentChunk(4))
	clock.advance(300 * time.Millisecond)
	rec.FeedPCM(silentChunk(4))

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("Expected 1 utterance after echo buffer cleared, got %d", len(got))
	}
	if len(got[0]) < 3*8 {
		t.Errorf("Expected the user's speech in the utterance, got %d bytes", len(got[0]))
	}
}

func TestRecorderKeepsUserSpeechDuringCorrelatedPlayback(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	sink := &utteranceSink{}
	rec := NewRecorder(100, sink.add)
	es := newTestEcho(clock, EchoCorrelate)
	rec.SetEchoSuppressor(es)
	rec.Start()

	played := sinePCM(440, 500, 44100, 0.8)
	es.RecordPlayedAudio(played)

	echo := attenuate(played[len(played)-882*2:], 0.25)
	user := sinePCM(1200, 20, 44100, 0.8)
	rec.FeedPCM(echo)
	rec.FeedPCM(user)
	rec.Stop()

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("Expected 1 utterance, got %d", len(got))
	}
	if len(got[0]) != len(user) {
		t.Errorf("Expected only the user's %d bytes, got %d", len(user), len(got[0]))
	}
}
