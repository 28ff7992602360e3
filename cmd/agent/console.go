package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lokutor-ai/avatar-chat/pkg/avatar"
)

// consoleDisplay prints chat lines to the terminal.
type consoleDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

func (d *consoleDisplay) AddMessage(text string, sender avatar.Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()

	label := "AVATAR"
	switch sender {
	case avatar.SenderUser:
		label = "YOU"
	case avatar.SenderSystem:
		label = "ERROR"
	}
	fmt.Fprintf(d.w, "\r\033[K[%s] %s\n", label, text)
}

// consoleAnimator stands in for the avatar renderer and reports clip changes.
type consoleAnimator struct {
	mu      sync.Mutex
	w       io.Writer
	current string
}

func (a *consoleAnimator) SwitchTo(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name == a.current {
		return
	}
	a.current = name
	fmt.Fprintf(a.w, "\r\033[K[ANIMATION] %s\n", name)
}

// playbackBuffer queues synthesized PCM for the output device callback.
// idle is open while audio is queued and closed once the queue empties.
type playbackBuffer struct {
	mu   sync.Mutex
	data []byte
	idle chan struct{}
}

func (p *playbackBuffer) Write(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idle == nil {
		p.idle = make(chan struct{})
	}
	p.data = append(p.data, chunk...)
	return nil
}

// Read fills out with queued audio and pads the rest with silence.
func (p *playbackBuffer) Read(out []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(out, p.data)
	p.data = p.data[n:]
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	if len(p.data) == 0 {
		p.signalIdle()
	}
	return n
}

// Clear drops queued audio and releases anyone waiting in Drain.
func (p *playbackBuffer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = nil
	p.signalIdle()
}

// Drain blocks until every queued byte has been handed to the device or the
// buffer is cleared.
func (p *playbackBuffer) Drain(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *playbackBuffer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data)
}

// signalIdle must be called with mu held.
func (p *playbackBuffer) signalIdle() {
	if p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
}

// readLines streams lines from r until EOF or until ctx is done. The channel
// is closed when the reader goroutine exits.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
