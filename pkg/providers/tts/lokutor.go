package tts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/lokutor-ai/avatar-chat/pkg/avatar"
)

// LokutorTTS streams PCM speech over a persistent WebSocket. One synthesis runs
// at a time; Abort may be called concurrently to cut it short.
type LokutorTTS struct {
	apiKey string
	host   string
	scheme string
	speed  float64
	steps  int

	// streamMu serializes syntheses, connMu guards conn.
	streamMu sync.Mutex
	connMu   sync.Mutex
	conn     *websocket.Conn
}

type synthesisRequest struct {
	Text    string  `json:"text"`
	Voice   string  `json:"voice"`
	Lang    string  `json:"lang"`
	Speed   float64 `json:"speed"`
	Steps   int     `json:"steps"`
	Visemes bool    `json:"visemes"`
}

func NewLokutorTTS(apiKey string) *LokutorTTS {
	return &LokutorTTS{
		apiKey: apiKey,
		host:   "api.lokutor.com",
		scheme: "wss",
		speed:  1.0,
		steps:  6,
	}
}

// SetSpeed changes the speaking rate; 1.0 is normal.
func (t *LokutorTTS) SetSpeed(speed float64) {
	t.speed = speed
}

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + url.QueryEscape(t.apiKey)}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	conn.SetReadLimit(10 * 1024 * 1024)

	t.conn = conn
	return conn, nil
}

// dropConn forgets conn if it is still the current connection.
func (t *LokutorTTS) dropConn(conn *websocket.Conn, reason string) {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn == conn {
		t.conn = nil
	}
	conn.Close(websocket.StatusInternalError, reason)
}

func (t *LokutorTTS) Synthesize(ctx context.Context, text string, voice avatar.Voice, lang avatar.Language) ([]byte, error) {
	var audio []byte
	err := t.StreamSynthesize(ctx, text, voice, lang, func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

func (t *LokutorTTS) StreamSynthesize(ctx context.Context, text string, voice avatar.Voice, lang avatar.Language, onChunk func([]byte) error) error {
	t.streamMu.Lock()
	defer t.streamMu.Unlock()

	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	req := synthesisRequest{
		Text:  text,
		Voice: string(voice),
		Lang:  string(lang),
		Speed: t.speed,
		Steps: t.steps,
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.dropConn(conn, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.dropConn(conn, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				// the rest of this stream is unread, so the socket is unusable
				t.dropConn(conn, "consumer stopped")
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if strings.HasPrefix(msg, "ERR:") {
				return fmt.Errorf("lokutor error: %s", strings.TrimSpace(strings.TrimPrefix(msg, "ERR:")))
			}
		}
	}
}

func (t *LokutorTTS) Name() string {
	return "lokutor"
}

func (t *LokutorTTS) Close() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}

// Abort closes the connection so a blocked StreamSynthesize returns promptly.
func (t *LokutorTTS) Abort() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusGoingAway, "abort")
		t.conn = nil
		return err
	}
	return nil
}
