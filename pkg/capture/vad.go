package capture

import (
	"time"

	"github.com/lokutor-ai/avatar-chat/pkg/audio"
)

type VADEventType string

const (
	VADSpeechStart VADEventType = "SPEECH_START"
	VADSpeechEnd   VADEventType = "SPEECH_END"
	VADSilence     VADEventType = "SILENCE"
)

type VADEvent struct {
	Type      VADEventType
	Timestamp int64
}

// RMSVAD is a Root Mean Square based voice activity detector over 16-bit PCM.
// It is not safe for concurrent use; the Recorder serializes access.
type RMSVAD struct {
	threshold    float64
	silenceLimit time.Duration
	isSpeaking   bool
	silenceStart time.Time

	// speech must persist for minConfirmed consecutive chunks to start
	consecutiveFrames int
	minConfirmed      int
	lastRMS           float64

	now func() time.Time
}

func NewRMSVAD(threshold float64, silenceLimit time.Duration) *RMSVAD {
	return &RMSVAD{
		threshold:    threshold,
		silenceLimit: silenceLimit,
		minConfirmed: 3,
		now:          time.Now,
	}
}

// SetMinConfirmed sets the number of consecutive loud chunks needed to confirm speech start
func (v *RMSVAD) SetMinConfirmed(count int) {
	if count < 1 {
		count = 1
	}
	v.minConfirmed = count
}

func (v *RMSVAD) SetThreshold(threshold float64) {
	v.threshold = threshold
}

func (v *RMSVAD) Threshold() float64 {
	return v.threshold
}

// LastRMS returns the RMS of the last processed chunk
func (v *RMSVAD) LastRMS() float64 {
	return v.lastRMS
}

func (v *RMSVAD) IsSpeaking() bool {
	return v.isSpeaking
}

// Process classifies one chunk. It returns nil while a speech start is still
// being confirmed or while speech continues.
func (v *RMSVAD) Process(chunk []byte) *VADEvent {
	rms := audio.RMS(chunk)
	v.lastRMS = rms
	now := v.now()

	if rms > v.threshold {
		v.consecutiveFrames++
		v.silenceStart = time.Time{}
		if !v.isSpeaking && v.consecutiveFrames >= v.minConfirmed {
			v.isSpeaking = true
			return &VADEvent{Type: VADSpeechStart, Timestamp: now.UnixMilli()}
		}
		return nil
	}

	v.consecutiveFrames = 0

	if v.isSpeaking {
		if v.silenceStart.IsZero() {
			v.silenceStart = now
		}
		if now.Sub(v.silenceStart) >= v.silenceLimit {
			v.isSpeaking = false
			v.silenceStart = time.Time{}
			return &VADEvent{Type: VADSpeechEnd, Timestamp: now.UnixMilli()}
		}
		return nil
	}

	return &VADEvent{Type: VADSilence, Timestamp: now.UnixMilli()}
}

func (v *RMSVAD) Reset() {
	v.isSpeaking = false
	v.silenceStart = time.Time{}
	v.consecutiveFrames = 0
}
