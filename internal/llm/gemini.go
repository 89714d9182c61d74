package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"google.golang.org/genai"

	"orbit/internal/config"
	"orbit/internal/logging"
)

// GeminiClient serves completions through Google's GenAI API. Streamed
// responses are re-framed as SSE chunks so the coordinator parses one
// wire shape regardless of provider.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewGeminiClient creates a client from config.
func NewGeminiClient(cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (c *GeminiClient) buildContents(messages []ChatMessage) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		if m.ImageB64 == "" {
			contents = append(contents, genai.NewContentFromText(m.Content, role))
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(m.ImageB64)
		if err != nil {
			return nil, fmt.Errorf("invalid image payload: %w", err)
		}
		parts := []*genai.Part{
			genai.NewPartFromText(m.Content),
			genai.NewPartFromBytes(raw, "image/jpeg"),
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents, nil
}

func (c *GeminiClient) genConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.temperature)),
		MaxOutputTokens: int32(c.maxTokens),
	}
}

// StreamChat opens a streamed completion, bridging the GenAI iterator
// onto an SSE-framed pipe. Closing the returned reader or cancelling
// ctx stops the generation.
func (c *GeminiClient) StreamChat(ctx context.Context, messages []ChatMessage) (io.ReadCloser, error) {
	contents, err := c.buildContents(messages)
	if err != nil {
		return nil, err
	}

	logging.LLMDebug("[Gemini] StreamChat: model=%s messages=%d", c.model, len(messages))

	pr, pw := io.Pipe()
	go func() {
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, c.genConfig()) {
			if err != nil {
				pw.CloseWithError(fmt.Errorf("GenAI stream failed: %w", err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			chunk, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{
					{"delta": map[string]string{"content": text}},
				},
			})
			if _, err := fmt.Fprintf(pw, "data: %s\n\n", chunk); err != nil {
				return
			}
		}
		fmt.Fprint(pw, "data: [DONE]\n\n")
		pw.Close()
	}()

	return pr, nil
}

// Complete sends a one-shot prompt and returns the completion text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.genConfig())
	if err != nil {
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(text), nil
}
