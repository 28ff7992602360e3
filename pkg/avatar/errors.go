package avatar

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned when SendMessage receives blank text
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmptyTranscription is returned when transcription produces empty text
	ErrEmptyTranscription = errors.New("transcription returned empty text")

	// ErrTransport marks a chat request that failed before any response arrived
	ErrTransport = errors.New("chat request transport failure")

	// ErrChatFailed is returned when the chat turn did not produce a reply
	ErrChatFailed = errors.New("chat request failed")

	// ErrSpeechFailed is returned when the reply could not be spoken
	ErrSpeechFailed = errors.New("text-to-speech playback failed")

	// ErrNilProvider is returned when a required collaborator is nil
	ErrNilProvider = errors.New("required provider is nil")
)

// StatusError is an HTTP-level failure from the chat backend. Body holds the
// response text as returned by the server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat api error (status %d)", e.Code)
	}
	return fmt.Sprintf("chat api error (status %d): %s", e.Code, e.Body)
}
