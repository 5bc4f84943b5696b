package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/lotto-checker/internal/ticket"
)

// GeminiClassic implements the Analyzer interface using the generative-ai-go SDK.
// That SDK has no search tool, so citations come from the candidate's citation metadata.
type GeminiClassic struct {
	apiKey    string
	modelName string
	opts      []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClassic creates a new GeminiClassic Analyzer instance.
// opts are passed to the client after the API key, e.g. option.WithEndpoint.
func NewGeminiClassic(apiKey string, modelName string, opts ...option.ClientOption) (*GeminiClassic, error) {
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}
	if apiKey == "" {
		slog.Warn("Gemini API key is empty; analysis requests will be rejected")
	}
	return &GeminiClassic{apiKey: apiKey, modelName: modelName, opts: opts}, nil
}

func (g *GeminiClassic) getModel(ctx context.Context) (*genai.GenerativeModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.model != nil {
		return g.model, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g.client = client
	g.model = client.GenerativeModel(g.modelName)
	return g.model, nil
}

// Analyze sends the ticket image and instruction in a single request
func (g *GeminiClassic) Analyze(ctx context.Context, req Request) (*ticket.LottoResult, error) {
	model, err := g.getModel(ctx)
	if err != nil {
		return nil, analysisError("client", err)
	}

	// genai.ImageData expects just the format suffix
	parts := []genai.Part{
		genai.ImageData(strings.TrimPrefix(req.MIMEType, "image/"), req.Image),
		genai.Text(TicketPrompt),
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, analysisError("generate", fmt.Errorf("generating content: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, analysisError("generate", fmt.Errorf("no response from gemini"))
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	result, err := parseLottoJSON(responseText.String())
	if err != nil {
		return nil, analysisError("parse", fmt.Errorf("parsing ticket data: %w", err))
	}

	result.Sources = citationSources(resp.Candidates[0].CitationMetadata)
	return result, nil
}

// citationSources converts citation metadata into citations.
// Citations carry no title, so every source gets the placeholder title.
func citationSources(meta *genai.CitationMetadata) []ticket.Source {
	sources := []ticket.Source{}
	if meta == nil {
		return sources
	}
	for _, src := range meta.CitationSources {
		if src == nil {
			continue
		}
		var uri string
		if src.URI != nil {
			uri = *src.URI
		}
		sources = append(sources, newSource("", uri))
	}
	return sources
}

// Close closes the Gemini client
func (g *GeminiClassic) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
