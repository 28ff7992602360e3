package avatar

import (
	"context"
	"sync"
)

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// Sender tags who a chat line belongs to when it is displayed.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "dify"
	// SenderSystem marks locally synthesized lines such as request failures.
	SenderSystem Sender = "system"
)

// ChatDisplay renders a line in the conversation view.
type ChatDisplay interface {
	AddMessage(text string, sender Sender)
}

// Speaker turns assistant text into audible speech. Speak returns once the
// audio has been handed to the output.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Animator switches the avatar to a named animation clip.
type Animator interface {
	SwitchTo(name string)
}

// RecordingState reports whether the microphone is currently capturing.
type RecordingState interface {
	IsRecording() bool
}

type ChatRequest struct {
	Query          string
	ConversationID string
	User           string
	// History holds prior turns, including the current user query as the
	// last entry. Providers without server-side memory use it.
	History []Message
}

type ChatReply struct {
	Answer         string
	ConversationID string
	MessageID      string
}

// ChatProvider performs exactly one request against the remote assistant.
// HTTP failures are reported as *StatusError, transport failures wrap
// ErrTransport.
type ChatProvider interface {
	Send(ctx context.Context, req ChatRequest) (*ChatReply, error)
	Name() string
}

type STTProvider interface {
	Transcribe(ctx context.Context, audio []byte, lang Language) (string, error)
	Name() string
}

type TTSProvider interface {
	Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error)
	StreamSynthesize(ctx context.Context, text string, voice Voice, lang Language, onChunk func([]byte) error) error
	// Abort forces any in-progress synthesis to stop immediately.
	Abort() error
	Name() string
}

type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceF3 Voice = "F3"
	VoiceF4 Voice = "F4"
	VoiceF5 Voice = "F5"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
	VoiceM3 Voice = "M3"
	VoiceM4 Voice = "M4"
	VoiceM5 Voice = "M5"
)

type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	ListeningAnimation string
	DefaultAnimation   string
	// User identifies the end user to the chat backend. New generates one
	// when empty.
	User       string
	MaxHistory int
	Voice      Voice
	Language   Language
	// Timeouts in seconds; zero disables the timeout.
	ChatTimeout   uint
	SpeechTimeout uint
	STTTimeout    uint
}

func DefaultConfig() Config {
	return Config{
		ListeningAnimation: "listening",
		DefaultAnimation:   "idle",
		MaxHistory:         20,
		Voice:              VoiceF1,
		Language:           LanguageEn,
		ChatTimeout:        60,
		SpeechTimeout:      120,
		STTTimeout:         30,
	}
}

// Session carries the state that outlives a single turn: the remote
// conversation id and a bounded transcript.
type Session struct {
	mu             sync.RWMutex
	ID             string
	conversationID string
	history        []Message
	maxMessages    int
}

func NewSession(id string, maxMessages int) *Session {
	return &Session{
		ID:          id,
		history:     []Message{},
		maxMessages: maxMessages,
	}
}

func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Message{Role: role, Content: content})
	if s.maxMessages > 0 && len(s.history) > s.maxMessages {
		s.history = s.history[len(s.history)-s.maxMessages:]
	}
}

// History returns a copy of the transcript.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

func (s *Session) SetConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []Message{}
	s.conversationID = ""
}
