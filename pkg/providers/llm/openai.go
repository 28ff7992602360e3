package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lokutor-ai/avatar-chat/pkg/avatar"
)

// OpenAIChat serves as the remote assistant for deployments without Dify. It
// keeps no server-side conversation, so the transcript is resent each turn.
type OpenAIChat struct {
	apiKey       string
	url          string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

func NewOpenAIChat(apiKey string, model string) *OpenAIChat {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIChat{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/chat/completions",
		model:      model,
		httpClient: http.DefaultClient,
	}
}

// SetBaseURL points the client at any OpenAI-compatible server.
func (l *OpenAIChat) SetBaseURL(baseURL string) {
	l.url = strings.TrimRight(baseURL, "/") + "/chat/completions"
}

// SetHTTPClient overrides the client used for requests.
func (l *OpenAIChat) SetHTTPClient(hc *http.Client) {
	l.httpClient = hc
}

func (l *OpenAIChat) SetSystemPrompt(prompt string) {
	l.systemPrompt = prompt
}

func (l *OpenAIChat) Send(ctx context.Context, req avatar.ChatRequest) (*avatar.ChatReply, error) {
	messages := make([]avatar.Message, 0, len(req.History)+2)
	if l.systemPrompt != "" {
		messages = append(messages, avatar.Message{Role: "system", Content: l.systemPrompt})
	}
	messages = append(messages, req.History...)
	if len(req.History) == 0 {
		messages = append(messages, avatar.Message{Role: avatar.RoleUser, Content: req.Query})
	}

	payload := map[string]interface{}{
		"model":    l.model,
		"messages": messages,
	}
	if req.User != "" {
		payload["user"] = req.User
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", avatar.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &avatar.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var result struct {
		ID      string `json:"id"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from openai")
	}

	return &avatar.ChatReply{
		Answer:    result.Choices[0].Message.Content,
		MessageID: result.ID,
	}, nil
}

func (l *OpenAIChat) Name() string {
	return "openai-chat"
}
