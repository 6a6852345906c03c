package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Ollama implements the Extractor interface using a local Ollama server.
// Vision models that work reasonably on bills:
//   - llava:1.6
//   - qwen2-vl:7b (best OCR of the small ones)
//   - llama3.2-vision
type Ollama struct {
	model   string
	timeout time.Duration
	client  *resty.Client
}

// NewOllama creates a new Ollama Extractor instance
func NewOllama(baseURL string, modelName string, timeout time.Duration) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Ollama{
		model:   modelName,
		timeout: timeout,
		client:  client,
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ExtractDocument sends one image to Ollama's chat API and parses the answer
func (o *Ollama) ExtractDocument(ctx context.Context, imageData []byte, contentType string) (*DocumentData, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	pngData, err := preparePNG(imageData, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You read appliance bills and warranty cards and answer only with JSON.",
			},
			{
				Role:    "user",
				Content: documentPrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	}

	var chatResp ollamaChatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&chatResp).
		Post("/api/chat")
	if err != nil {
		return nil, fmt.Errorf("%w: calling ollama API: %w", ErrExtractionFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: ollama API error (status %d): %s", ErrExtractionFailed, resp.StatusCode(), resp.String())
	}

	data, err := parseDocumentJSON(chatResp.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing document data: %w", ErrExtractionFailed, err)
	}
	return data, nil
}

// Close is a no-op; resty keeps no resources that need releasing
func (o *Ollama) Close() error {
	return nil
}
