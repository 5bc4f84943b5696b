package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/zombor/lotto-checker/internal/ticket"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-3-flash-preview"

// GeminiConfig configures the search grounded Gemini analyzer
type GeminiConfig struct {
	APIKey string
	Model  string
	// JSONMode asks the service for an application/json response
	JSONMode bool
	// BaseURL overrides the API endpoint
	BaseURL string
}

// Gemini implements the Analyzer interface using Gemini with Google Search grounding
type Gemini struct {
	cfg GeminiConfig

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini creates a new Gemini Analyzer instance.
// The client is created on first use so a missing key only fails the analysis itself.
func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.APIKey == "" {
		slog.Warn("Gemini API key is empty; analysis requests will be rejected")
	}
	return &Gemini{cfg: cfg}, nil
}

func (g *Gemini) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// Analyze sends the ticket image and instruction in a single grounded request
func (g *Gemini) Analyze(ctx context.Context, req Request) (*ticket.LottoResult, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, analysisError("client", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image, req.MIMEType),
			genai.NewPartFromText(TicketPrompt),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	if g.cfg.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		return nil, analysisError("generate", fmt.Errorf("generating content: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, analysisError("generate", fmt.Errorf("no response from gemini"))
	}

	candidate := resp.Candidates[0]

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		responseText.WriteString(part.Text)
	}

	result, err := parseLottoJSON(responseText.String())
	if err != nil {
		return nil, analysisError("parse", fmt.Errorf("parsing ticket data: %w", err))
	}

	result.Sources = groundingSources(candidate.GroundingMetadata)
	return result, nil
}

// groundingSources converts grounding chunks into citations.
// Missing metadata yields an empty list.
func groundingSources(meta *genai.GroundingMetadata) []ticket.Source {
	sources := []ticket.Source{}
	if meta == nil {
		return sources
	}
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil {
			continue
		}
		var title, uri string
		if chunk.Web != nil {
			title = chunk.Web.Title
			uri = chunk.Web.URI
		}
		sources = append(sources, newSource(title, uri))
	}
	return sources
}

// Close is a no-op; the genai client holds no long lived connections
func (g *Gemini) Close() error {
	return nil
}
