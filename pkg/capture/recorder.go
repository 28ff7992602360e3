// Package capture turns raw float32 microphone frames into 16-bit PCM
// utterances for transcription.
package capture

import (
	"bytes"
	"sync"

	"github.com/lokutor-ai/avatar-chat/pkg/audio"
	"github.com/lokutor-ai/avatar-chat/pkg/avatar"
)

// Recorder buffers microphone audio while recording is on. Without a VAD an
// utterance is everything between Start and Stop. With a VAD each detected
// speech segment is delivered as soon as it ends, and Stop delivers a segment
// still in progress.
//
// Recorder satisfies avatar.RecordingState.
type Recorder struct {
	mu          sync.Mutex
	recording   bool
	buf         bytes.Buffer
	vad         *RMSVAD
	echo        *EchoSuppressor
	preRoll     int
	onUtterance func(pcm []byte)
	logger      avatar.Logger
}

// NewRecorder creates a stopped recorder. sampleRate is the capture rate and
// sizes the half-second pre-roll kept ahead of detected speech.
func NewRecorder(sampleRate int, onUtterance func(pcm []byte)) *Recorder {
	return &Recorder{
		preRoll:     sampleRate &^ 1, // 16-bit mono: sampleRate bytes == 500ms
		onUtterance: onUtterance,
		logger:      &avatar.NoOpLogger{},
	}
}

func (r *Recorder) SetVAD(vad *RMSVAD) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad = vad
}

// SetEchoSuppressor makes the recorder discard input the suppressor flags as
// the avatar's own playback.
func (r *Recorder) SetEchoSuppressor(echo *EchoSuppressor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.echo = echo
}

func (r *Recorder) SetLogger(logger avatar.Logger) {
	if logger == nil {
		logger = &avatar.NoOpLogger{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins buffering. Calling Start while recording is a no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return
	}
	r.recording = true
	r.buf.Reset()
	if r.vad != nil {
		r.vad.Reset()
	}
	r.logger.Info("recording started")
}

// Stop ends buffering and delivers any pending utterance.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false

	var pending []byte
	if r.vad == nil || r.vad.IsSpeaking() {
		pending = r.take()
	}
	r.buf.Reset()
	if r.vad != nil {
		r.vad.Reset()
	}
	r.logger.Info("recording stopped", "pendingBytes", len(pending))
	r.mu.Unlock()

	r.deliver(pending)
}

// Feed accepts one device frame of little-endian float32 mono samples. Frames
// arriving while stopped are dropped.
func (r *Recorder) Feed(frame []byte) {
	pcm := audio.Int16ToBytes(audio.FloatTo16BitPCM(audio.BytesToFloat32(frame)))
	r.FeedPCM(pcm)
}

// FeedPCM accepts 16-bit little-endian mono PCM directly. Chunks flagged as
// echo never reach the buffer or the VAD.
func (r *Recorder) FeedPCM(pcm []byte) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	if r.echo != nil && r.echo.IsEcho(pcm) {
		r.mu.Unlock()
		return
	}

	r.buf.Write(pcm)

	var ready []byte
	if r.vad != nil {
		event := r.vad.Process(pcm)
		switch {
		case event != nil && event.Type == VADSpeechEnd:
			ready = r.take()
			r.logger.Debug("speech segment ended", "bytes", len(ready))
		case !r.vad.IsSpeaking():
			r.trimPreRoll()
		}
	}
	r.mu.Unlock()

	r.deliver(ready)
}

// take drains the buffer. Caller must hold mu.
func (r *Recorder) take() []byte {
	if r.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, r.buf.Len())
	copy(out, r.buf.Bytes())
	r.buf.Reset()
	return out
}

// trimPreRoll keeps only the most recent preRoll bytes. Caller must hold mu.
func (r *Recorder) trimPreRoll() {
	if r.preRoll <= 0 || r.buf.Len() <= r.preRoll {
		return
	}
	data := r.buf.Bytes()
	keep := make([]byte, r.preRoll)
	copy(keep, data[len(data)-r.preRoll:])
	r.buf.Reset()
	r.buf.Write(keep)
}

func (r *Recorder) deliver(pcm []byte) {
	if len(pcm) == 0 || r.onUtterance == nil {
		return
	}
	r.onUtterance(pcm)
}
