package dify

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

const DefaultBaseURL = "https://api.dify.ai/v1"

// Client talks to the Dify chat-messages endpoint in blocking mode.
type Client struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

func NewClient(apiKey string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		url:        strings.TrimRight(baseURL, "/") + "/chat-messages",
		httpClient: http.DefaultClient,
	}
}

// SetHTTPClient overrides the client used for requests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

type chatMessageRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	Query          string                 `json:"query"`
	ResponseMode   string                 `json:"response_mode"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	User           string                 `json:"user"`
}

type chatMessageResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

func (c *Client) Send(ctx context.Context, req avatar.ChatRequest) (*avatar.ChatReply, error) {
	body, err := json.Marshal(chatMessageRequest{
		Inputs:         map[string]interface{}{},
		Query:          req.Query,
		ResponseMode:   "blocking",
		ConversationID: req.ConversationID,
		User:           req.User,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", avatar.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &avatar.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var result chatMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("dify: decode response: %w", err)
	}

	return &avatar.ChatReply{
		Answer:         result.Answer,
		ConversationID: result.ConversationID,
		MessageID:      result.MessageID,
	}, nil
}

func (c *Client) Name() string {
	return "dify"
}
