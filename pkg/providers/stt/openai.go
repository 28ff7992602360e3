package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/lokutor-ai/avatar-chat/pkg/audio"
	"github.com/lokutor-ai/avatar-chat/pkg/avatar"
)

const defaultTranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"

// OpenAISTT transcribes captured microphone PCM through any Whisper-compatible
// /audio/transcriptions endpoint. Utterances are uploaded as mono 16-bit WAV
// at the capture rate.
type OpenAISTT struct {
	apiKey     string
	url        string
	model      string
	prompt     string
	sampleRate int
	httpClient *http.Client
}

func NewOpenAISTT(apiKey string, model string) *OpenAISTT {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAISTT{
		apiKey:     apiKey,
		url:        defaultTranscriptionURL,
		model:      model,
		sampleRate: 44100,
		httpClient: http.DefaultClient,
	}
}

// SetSampleRate sets the rate written into the WAV header. It must match the
// capture device.
func (s *OpenAISTT) SetSampleRate(rate int) {
	s.sampleRate = rate
}

func (s *OpenAISTT) SetBaseURL(baseURL string) {
	s.url = strings.TrimRight(baseURL, "/") + "/audio/transcriptions"
}

// SetPrompt passes a vocabulary hint (names, product terms) with every upload.
func (s *OpenAISTT) SetPrompt(prompt string) {
	s.prompt = prompt
}

// SetHTTPClient overrides the client used for requests.
func (s *OpenAISTT) SetHTTPClient(hc *http.Client) {
	s.httpClient = hc
}

func (s *OpenAISTT) Name() string {
	return "openai_stt"
}

// Transcribe uploads one utterance. Empty audio yields an empty transcript
// without a request.
func (s *OpenAISTT) Transcribe(ctx context.Context, pcm []byte, lang avatar.Language) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	body, contentType, err := s.form(pcm, lang)
	if err != nil {
		return "", fmt.Errorf("openai stt: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", avatar.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &avatar.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var result transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("openai stt: decode response: %w", err)
	}
	return result.Text, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (s *OpenAISTT) form(pcm []byte, lang avatar.Language) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"model", s.model},
		{"response_format", "json"},
		{"language", string(lang)},
		{"prompt", s.prompt},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.NewWavBuffer(pcm, s.sampleRate)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
