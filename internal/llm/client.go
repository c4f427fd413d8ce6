package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// answerPrompt frames the completion request. The model is instructed to
// answer only from the provided study-material context.
const answerPrompt = `You are a helpful academic assistant that helps students answer their queries based on the provided context from their study materials. Use the context to provide an in-depth explanation for the question. If the context does not contain the information needed to answer the question, respond with "I don't know".

Context:
%s

Question:
%s

Answer:
`

// Client is a client for an OpenAI-compatible chat completions API, used as
// the answer generator behind retrieval.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewClient creates a new completion client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		client:  http.DefaultClient,
	}
}

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatChoice struct {
	Message ChatMessage `json:"message"`
}

// ChatResponse represents the response from the chat completions API.
type ChatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Answer generates a natural-language answer for the question grounded in
// the given context string.
func (c *Client) Answer(ctx context.Context, contextText, question string) (string, error) {
	prompt := fmt.Sprintf(answerPrompt, contextText, question)
	return c.complete(ctx, prompt)
}

// complete sends a single-message chat completion request.
func (c *Client) complete(ctx context.Context, message string) (string, error) {
	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)

	body, err := json.Marshal(chatRequest{
		Model:    c.Model,
		Messages: []ChatMessage{{Role: "user", Content: message}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
