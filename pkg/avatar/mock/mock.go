// Package mock provides recording fakes for the collaborators of
// [avatar.Agent]: chat display, speaker, animator, recording flag, chat
// provider and speech-to-text.
//
// Every fake records its calls and, when given a shared [Timeline], appends a
// short entry per call so tests can assert ordering across collaborators.
// All fakes are safe for concurrent use.
//
// Example:
//
//	tl := &mock.Timeline{}
//	display := &mock.Display{Timeline: tl}
//	chat := &mock.Chat{Timeline: tl, Reply: &avatar.ChatReply{Answer: "hi"}}
//	agent, _ := avatar.New(avatar.Collaborators{Chat: chat, Display: display, ...}, avatar.DefaultConfig())
package mock

import (
	"context"
	"sync"

	"github.com/lokutor-ai/avatar-chat/pkg/avatar"
)

// Timeline is an ordered, cross-collaborator call log.
type Timeline struct {
	mu     sync.Mutex
	events []string
}

func (t *Timeline) record(event string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Events returns a copy of the recorded entries in call order.
func (t *Timeline) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.events))
	copy(out, t.events)
	return out
}

// Index returns the position of the first entry equal to event, or -1.
func (t *Timeline) Index(event string) int {
	for i, e := range t.Events() {
		if e == event {
			return i
		}
	}
	return -1
}

// LastIndex returns the position of the last entry equal to event, or -1.
func (t *Timeline) LastIndex(event string) int {
	events := t.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i] == event {
			return i
		}
	}
	return -1
}

// ─── Display ─────────────────────────────────────────────────────────────────

// AddMessageCall records one [Display.AddMessage] invocation.
type AddMessageCall struct {
	Text   string
	Sender avatar.Sender
}

// Display is a mock [avatar.ChatDisplay].
type Display struct {
	mu       sync.Mutex
	Timeline *Timeline

	Calls []AddMessageCall
}

func (d *Display) AddMessage(text string, sender avatar.Sender) {
	d.mu.Lock()
	d.Calls = append(d.Calls, AddMessageCall{Text: text, Sender: sender})
	d.mu.Unlock()
	d.Timeline.record("display:" + string(sender))
}

// Messages returns a copy of the recorded calls.
func (d *Display) Messages() []AddMessageCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]AddMessageCall, len(d.Calls))
	copy(out, d.Calls)
	return out
}

// ─── Speaker ─────────────────────────────────────────────────────────────────

// Speaker is a mock [avatar.Speaker].
type Speaker struct {
	mu       sync.Mutex
	Timeline *Timeline

	// Err is returned by Speak.
	Err error

	Calls []string
}

func (s *Speaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, text)
	err := s.Err
	s.mu.Unlock()
	s.Timeline.record("speak")
	return err
}

// Texts returns a copy of the spoken texts.
func (s *Speaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Calls))
	copy(out, s.Calls)
	return out
}

// ─── Animator ────────────────────────────────────────────────────────────────

// Animator is a mock [avatar.Animator].
type Animator struct {
	mu       sync.Mutex
	Timeline *Timeline

	Calls []string
}

func (a *Animator) SwitchTo(name string) {
	a.mu.Lock()
	a.Calls = append(a.Calls, name)
	a.mu.Unlock()
	a.Timeline.record("animation:" + name)
}

// Animations returns a copy of the requested animation names.
func (a *Animator) Animations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.Calls))
	copy(out, a.Calls)
	return out
}

// ─── Recording ───────────────────────────────────────────────────────────────

// Recording is a mock [avatar.RecordingState] with a settable flag.
type Recording struct {
	mu     sync.Mutex
	Active bool
}

func (r *Recording) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Active
}

// Set changes the flag.
func (r *Recording) Set(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Active = active
}

// ─── Chat ────────────────────────────────────────────────────────────────────

// Chat is a mock [avatar.ChatProvider].
type Chat struct {
	mu       sync.Mutex
	Timeline *Timeline

	// Reply and Err are returned by Send.
	Reply *avatar.ChatReply
	Err   error

	// SendFunc, when set, replaces Reply/Err.
	SendFunc func(ctx context.Context, req avatar.ChatRequest) (*avatar.ChatReply, error)

	Calls []avatar.ChatRequest
}

func (c *Chat) Send(ctx context.Context, req avatar.ChatRequest) (*avatar.ChatReply, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, req)
	fn, reply, err := c.SendFunc, c.Reply, c.Err
	c.mu.Unlock()
	c.Timeline.record("chat")

	if fn != nil {
		return fn(ctx, req)
	}
	return reply, err
}

func (c *Chat) Name() string {
	return "MockChat"
}

// Requests returns a copy of the recorded requests.
func (c *Chat) Requests() []avatar.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]avatar.ChatRequest, len(c.Calls))
	copy(out, c.Calls)
	return out
}

// ─── STT ─────────────────────────────────────────────────────────────────────

// STT is a mock [avatar.STTProvider].
type STT struct {
	mu sync.Mutex

	Transcript string
	Err        error

	Calls [][]byte
}

func (s *STT) Transcribe(ctx context.Context, audio []byte, lang avatar.Language) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, audio)
	return s.Transcript, s.Err
}

func (s *STT) Name() string {
	return "MockSTT"
}
