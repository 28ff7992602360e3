package avatar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Collaborators groups everything an Agent talks to. Chat, Display, Speaker
// and Animator are required. Recording and STT are optional.
type Collaborators struct {
	Chat      ChatProvider
	Display   ChatDisplay
	Speaker   Speaker
	Animator  Animator
	Recording RecordingState
	STT       STTProvider
}

// Agent runs one chat turn at a time: show the user's text, ask the remote
// assistant, show and speak the answer, and keep the avatar animation in sync.
type Agent struct {
	chat      ChatProvider
	display   ChatDisplay
	speaker   Speaker
	animator  Animator
	recording RecordingState
	stt       STTProvider

	session *Session
	config  Config
	logger  Logger
	mu      sync.RWMutex

	// turns are handled strictly one after another
	turnMu sync.Mutex
}

type notRecording struct{}

func (notRecording) IsRecording() bool { return false }

// New creates an agent with a no-op logger.
func New(c Collaborators, config Config) (*Agent, error) {
	return NewWithLogger(c, config, &NoOpLogger{})
}

// NewWithLogger creates an agent with a custom logger.
// If logger is nil, a no-op logger is used.
func NewWithLogger(c Collaborators, config Config, logger Logger) (*Agent, error) {
	if c.Chat == nil || c.Display == nil || c.Speaker == nil || c.Animator == nil {
		return nil, ErrNilProvider
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if c.Recording == nil {
		c.Recording = notRecording{}
	}
	if config.User == "" {
		config.User = "avatar-" + uuid.NewString()
	}

	return &Agent{
		chat:      c.Chat,
		display:   c.Display,
		speaker:   c.Speaker,
		animator:  c.Animator,
		recording: c.Recording,
		stt:       c.STT,
		session:   NewSession(config.User, config.MaxHistory),
		config:    config,
		logger:    logger,
	}, nil
}

// SendMessage handles one user message end to end.
//
// The avatar switches to the listening animation first and the user's text is
// displayed. Exactly one chat request follows. A reply is displayed and spoken
// once; any chat failure is displayed as a single error line and nothing is
// spoken. When the turn finishes the avatar returns to the default animation,
// or stays in the listening animation while the microphone is open.
//
// The returned error is informational: the user-visible outcome has already
// been rendered through the display.
func (a *Agent) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	cfg := a.GetConfig()

	a.animator.SwitchTo(cfg.ListeningAnimation)
	defer a.settle(cfg)

	a.display.AddMessage(text, SenderUser)
	a.logger.Info("user message sent", "sessionID", a.session.ID, "messageLen", len(text))

	reply, err := a.requestReply(ctx, cfg, text)
	if err != nil {
		a.logger.Error("chat request failed", "sessionID", a.session.ID, "provider", a.chat.Name(), "error", err)
		a.display.AddMessage(failureMessage(err), SenderSystem)
		return fmt.Errorf("%w: %w", ErrChatFailed, err)
	}

	// a failed turn leaves no trace in the transcript
	if reply.ConversationID != "" {
		a.session.SetConversationID(reply.ConversationID)
	}
	a.session.AddMessage(RoleUser, text)
	a.session.AddMessage(RoleAssistant, reply.Answer)
	a.display.AddMessage(reply.Answer, SenderAssistant)
	a.logger.Info("chat reply received", "sessionID", a.session.ID, "responseLen", len(reply.Answer))

	if err := a.speak(ctx, cfg, reply.Answer); err != nil {
		a.logger.Error("speech playback failed", "sessionID", a.session.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrSpeechFailed, err)
	}

	return nil
}

// HandleUtterance transcribes captured 16-bit PCM and sends the transcript as a
// user message.
func (a *Agent) HandleUtterance(ctx context.Context, pcm []byte) (string, error) {
	if a.stt == nil {
		return "", ErrNilProvider
	}
	cfg := a.GetConfig()

	sttCtx, cancel := withTimeout(ctx, cfg.STTTimeout)
	transcript, err := a.stt.Transcribe(sttCtx, pcm, cfg.Language)
	cancel()
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		a.logger.Warn("empty transcription received", "sessionID", a.session.ID)
		return "", ErrEmptyTranscription
	}

	a.logger.Info("transcription completed", "sessionID", a.session.ID, "length", len(transcript))
	return transcript, a.SendMessage(ctx, transcript)
}

func (a *Agent) requestReply(ctx context.Context, cfg Config, text string) (*ChatReply, error) {
	chatCtx, cancel := withTimeout(ctx, cfg.ChatTimeout)
	defer cancel()

	history := append(a.session.History(), Message{Role: RoleUser, Content: text})
	reply, err := a.chat.Send(chatCtx, ChatRequest{
		Query:          text,
		ConversationID: a.session.ConversationID(),
		User:           cfg.User,
		History:        history,
	})
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, errors.New("chat provider returned no reply")
	}
	return reply, nil
}

func (a *Agent) speak(ctx context.Context, cfg Config, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	speechCtx, cancel := withTimeout(ctx, cfg.SpeechTimeout)
	defer cancel()
	return a.speaker.Speak(speechCtx, text)
}

func (a *Agent) settle(cfg Config) {
	if a.recording.IsRecording() {
		a.animator.SwitchTo(cfg.ListeningAnimation)
		return
	}
	a.animator.SwitchTo(cfg.DefaultAnimation)
}

func failureMessage(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Body == "" {
			return fmt.Sprintf("Dify API request error: %d", statusErr.Code)
		}
		return fmt.Sprintf("Dify API request error: %d %s", statusErr.Code, statusErr.Body)
	case errors.Is(err, ErrTransport):
		return "Network error: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func withTimeout(ctx context.Context, seconds uint) (context.Context, context.CancelFunc) {
	if seconds == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// ResetConversation drops the remote conversation id and the local transcript.
func (a *Agent) ResetConversation() {
	a.session.Clear()
	a.logger.Info("conversation reset", "sessionID", a.session.ID)
}

// Session exposes the agent's conversation state.
func (a *Agent) Session() *Session {
	return a.session
}

// UpdateConfig updates the agent configuration
func (a *Agent) UpdateConfig(cfg Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.User == "" {
		cfg.User = a.config.User
	}
	a.config = cfg
}

// GetConfig returns the current configuration
func (a *Agent) GetConfig() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// GetProviders returns the names of the configured providers
func (a *Agent) GetProviders() map[string]string {
	providers := map[string]string{"chat": a.chat.Name()}
	if a.stt != nil {
		providers["stt"] = a.stt.Name()
	}
	return providers
}
