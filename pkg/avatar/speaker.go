package avatar

import (
	"context"
	"fmt"
)

// TTSSpeaker streams synthesized speech from a TTSProvider into an audio sink.
type TTSSpeaker struct {
	tts   TTSProvider
	voice Voice
	lang  Language
	sink  func([]byte) error
	drain func(ctx context.Context) error
}

// NewTTSSpeaker returns a Speaker that writes every synthesized PCM chunk to
// sink as it arrives.
func NewTTSSpeaker(tts TTSProvider, voice Voice, lang Language, sink func([]byte) error) *TTSSpeaker {
	return &TTSSpeaker{tts: tts, voice: voice, lang: lang, sink: sink}
}

func (s *TTSSpeaker) Speak(ctx context.Context, text string) error {
	if s.tts == nil || s.sink == nil {
		return ErrNilProvider
	}
	if err := s.tts.StreamSynthesize(ctx, text, s.voice, s.lang, s.sink); err != nil {
		return fmt.Errorf("%s: %w", s.tts.Name(), err)
	}
	if s.drain != nil {
		if err := s.drain(ctx); err != nil {
			return fmt.Errorf("playback: %w", err)
		}
	}
	return nil
}

// SetDrain installs a wait that Speak runs after synthesis finishes. It should
// block until the sink has played everything written to it, so Speak returns
// only once the avatar has stopped talking.
func (s *TTSSpeaker) SetDrain(drain func(ctx context.Context) error) {
	s.drain = drain
}

// Stop aborts any synthesis in flight.
func (s *TTSSpeaker) Stop() error {
	if s.tts == nil {
		return nil
	}
	return s.tts.Abort()
}
