package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatdash/core"

	"github.com/sirupsen/logrus"
)

type LiteralType string

const (
	LiteralTypeText     LiteralType = "text"
	LiteralTypeImageURL LiteralType = "image_url"
)

// TextContentPart is a part of a multi-part message with text.
type TextContentPart struct {
	Type LiteralType `json:"type"`
	Text string      `json:"text"`
}

// ImageURL details the URL and detail level of an image.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ImageContentPart is a part of a multi-part message with an image.
type ImageContentPart struct {
	Type     LiteralType `json:"type"`
	ImageURL ImageURL    `json:"image_url"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or a slice of content parts
}

type ChatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens *int          `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
}

// OpenAI answers with a completion from an OpenAI-compatible chat endpoint.
type OpenAI struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxHistory limits how many trailing messages are sent. Zero sends 20.
	MaxHistory int
	Client     *http.Client
}

// NewOpenAI creates a responder talking to baseURL.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	return &OpenAI{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (o *OpenAI) Reply(ctx context.Context, history []core.Message) (string, error) {
	limit := o.MaxHistory
	if limit <= 0 {
		limit = 20
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	req := ChatCompletionRequest{
		Model:    o.Model,
		Messages: make([]ChatMessage, 0, len(history)),
	}
	for _, msg := range history {
		req.Messages = append(req.Messages, toChatMessage(msg))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to communicate with completion API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(data),
		}).Warn("Completion API returned an error")
		return "", fmt.Errorf("completion API returned status %d", resp.StatusCode)
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(data, &completion); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}

	text, ok := completion.Choices[0].Message.Content.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("completion response has no text content")
	}
	return text, nil
}

func toChatMessage(msg core.Message) ChatMessage {
	role := "user"
	if msg.Sender == core.SenderResponder {
		role = "assistant"
	}
	if msg.Image == "" {
		return ChatMessage{Role: role, Content: msg.Text}
	}

	url := msg.Image
	if !strings.HasPrefix(url, "data:") {
		url = "data:image/png;base64," + url
	}
	parts := []any{}
	if msg.Text != "" {
		parts = append(parts, TextContentPart{Type: LiteralTypeText, Text: msg.Text})
	}
	parts = append(parts, ImageContentPart{Type: LiteralTypeImageURL, ImageURL: ImageURL{URL: url}})
	return ChatMessage{Role: role, Content: parts}
}
