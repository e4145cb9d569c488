package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/phrazzld/sentinel/internal/config"
	"github.com/phrazzld/sentinel/internal/generation"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

const temperature = float32(0.2)

// contentGenerator is the subset of genai.Models the generator calls.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator implements generation.Generator with the Gemini API.
type Generator struct {
	models     contentGenerator
	model      string
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// Ensure Generator implements generation.Generator
var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Gemini client from cfg.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(models contentGenerator, cfg config.LLMConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.ModelName
	if model == "" {
		model = DefaultModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	return &Generator{
		models:     models,
		model:      model,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger.With("component", "gemini_generator", "model", model),
	}
}

// BuildPrompt returns the prompt sent for req.
func BuildPrompt(req generation.Request) string {
	return fmt.Sprintf(
		"Create a JSON mapping file paths to contents for a small project based on: %s\nTemplate: %s",
		req.Idea,
		req.Template,
	)
}

// Generate asks the model for the project files.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (*generation.Artifact, error) {
	if strings.TrimSpace(req.Idea) == "" {
		return nil, fmt.Errorf("%w: idea cannot be empty", generation.ErrGenerationFailed)
	}

	text, err := g.callWithRetry(ctx, BuildPrompt(req))
	if err != nil {
		return nil, err
	}

	artifact, err := generation.ParseFileMapping(text)
	if err != nil {
		g.logger.WarnContext(ctx, "unusable model response", "error", err, "response_length", len(text))
		return nil, err
	}

	g.logger.InfoContext(ctx, "project generated", "file_count", len(artifact.Files))
	return artifact, nil
}

// callWithRetry calls the API up to maxRetries+1 times. Only API call errors
// are retried; response problems are permanent.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (string, error) {
	temp := temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}

	for attempt := 0; ; attempt++ {
		g.logger.DebugContext(ctx, "calling Gemini API",
			"attempt", attempt+1,
			"max_attempts", g.maxRetries+1)

		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
		if err == nil {
			return extractText(resp)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed", "attempt", attempt+1, "error", err)
		if attempt >= g.maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, g.maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		backoff := float64(g.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", generation.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: response has no text", generation.ErrInvalidResponse)
	}
	return sb.String(), nil
}
