package llm

import (
	"context"
	"fmt"
)

// Client is a client for an OpenAI-compatible chat completions API
// (llama.cpp server, Ollama, vLLM).
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	opts    options
}

// NewClient creates a new LLM client.
func NewClient(baseURL, apiKey, model string, opts ...Option) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		opts:    applyOptions(opts),
	}
}

// ChatMessage represents a single message in a chat completion request.
// Content is either a string or a []ContentPart for multimodal input.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ChatRequest represents the request payload for chat completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

// ChatChoiceMessage represents the message in a chat choice.
type ChatChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatChoice represents a single choice in the chat response.
type ChatChoice struct {
	Index        int               `json:"index"`
	Message      ChatChoiceMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// ChatResponse represents the response from the chat completions API.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Choices []ChatChoice `json:"choices"`
}

// Chat sends a single user message and returns the reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	return c.ChatWithMessages(ctx, []Message{{Role: "user", Content: message}}, ChatParams{})
}

// ChatWithMessages sends a full conversation and returns the assistant reply.
func (c *Client) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	chatMessages := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return c.complete(ctx, chatMessages, params)
}

// DescribeImage asks a vision-capable model about one image.
// imageURL may be an http(s) URL or a data URI.
func (c *Client) DescribeImage(ctx context.Context, prompt, imageURL string) (string, error) {
	messages := []ChatMessage{
		{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
			},
		},
	}
	return c.complete(ctx, messages, ChatParams{})
}

func (c *Client) complete(ctx context.Context, messages []ChatMessage, params ChatParams) (string, error) {
	model := params.Model
	if model == "" {
		model = c.Model
	}

	payload := ChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}

	var chatResp ChatResponse
	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)
	if err := postJSON(ctx, c.opts, url, c.APIKey, payload, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}
