package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNewWavBuffer(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	sampleRate := 16000
	wav := NewWavBuffer(pcm, sampleRate)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("Expected RIFF prefix")
	}

	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("Expected WAVE format identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(wav) != expectedLen {
		t.Fatalf("Expected length %d, got %d", expectedLen, len(wav))
	}

	if got := binary.LittleEndian.Uint32(wav[24:28]); got != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d in header, got %d", sampleRate, got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != uint32(sampleRate*2) {
		t.Errorf("Expected byte rate %d, got %d", sampleRate*2, got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("Expected data size %d, got %d", len(pcm), got)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Errorf("Expected PCM payload after header")
	}
}

func TestNewWavBufferEmpty(t *testing.T) {
	wav := NewWavBuffer(nil, 44100)
	if len(wav) != 44 {
		t.Errorf("Expected bare 44 byte header, got %d", len(wav))
	}
}
