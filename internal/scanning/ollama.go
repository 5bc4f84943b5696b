package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zombor/lotto-checker/internal/ticket"
)

// Ollama implements the Analyzer interface using a local Ollama vision model.
// Local models cannot search, so winning numbers come from the model alone and
// results never carry citations.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Analyzer instance
// Recommended models for ticket reading:
//   - qwen2.5vl (good OCR capabilities)
//   - llava:latest (general purpose vision model)
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "qwen2.5vl"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client:  &http.Client{},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
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

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Analyze sends the ticket image and instruction to Ollama
func (o *Ollama) Analyze(ctx context.Context, req Request) (*ticket.LottoResult, error) {
	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading lottery tickets. You must carefully read every printed number in the image.",
			},
			{
				Role:    "user",
				Content: TicketPrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(req.Image)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, analysisError("request", fmt.Errorf("marshaling request: %w", err))
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, analysisError("request", fmt.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, analysisError("generate", fmt.Errorf("calling ollama API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, analysisError("generate", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, analysisError("generate", fmt.Errorf("decoding response: %w", err))
	}

	result, err := parseLottoJSON(chatResp.Message.Content)
	if err != nil {
		return nil, analysisError("parse", fmt.Errorf("parsing ticket data: %w", err))
	}
	return result, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
