package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/phrazzld/sentinel/internal/config"
	"github.com/phrazzld/sentinel/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeModels replays a scripted sequence of responses.
type fakeModels struct {
	mu        sync.Mutex
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	prompts   []string
	configs   []*genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(
	_ context.Context,
	_ string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	}
	f.configs = append(f.configs, cfg)

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func testGenerator(models contentGenerator, retries int) *Generator {
	return newGenerator(models, config.LLMConfig{MaxRetries: retries, RetryDelaySeconds: 0},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var calcRequest = generation.Request{Name: "calc", Idea: "a calculator", Template: "python-cli"}

func TestNewGenerator_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	_, err := NewGenerator(context.Background(), nil, config.LLMConfig{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()
	prompt := BuildPrompt(calcRequest)
	assert.Contains(t, prompt, "based on: a calculator")
	assert.Contains(t, prompt, "Template: python-cli")
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	models := &fakeModels{responses: []*genai.GenerateContentResponse{
		textResponse("```json\n{\"main.py\": \"print(1)\", \"README.md\": \"# calc\"}\n```"),
	}}
	gen := testGenerator(models, 0)

	artifact, err := gen.Generate(context.Background(), calcRequest)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"main.py": "print(1)", "README.md": "# calc"}, artifact.Files)

	require.Len(t, models.prompts, 1)
	assert.Equal(t, BuildPrompt(calcRequest), models.prompts[0])
	require.NotNil(t, models.configs[0].Temperature)
	assert.InDelta(t, 0.2, *models.configs[0].Temperature, 0.0001)
	assert.Equal(t, DefaultModel, gen.model)
}

func TestGenerator_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	models := &fakeModels{
		errs:      []error{errors.New("503 unavailable"), nil},
		responses: []*genai.GenerateContentResponse{nil, textResponse(`{"main.py": "x"}`)},
	}
	gen := testGenerator(models, 1)
	gen.baseDelay = 1

	artifact, err := gen.Generate(context.Background(), calcRequest)
	require.NoError(t, err)
	assert.Contains(t, artifact.Files, "main.py")
	assert.Equal(t, 2, models.calls)
}

func TestGenerator_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	apiErr := errors.New("503 unavailable")
	models := &fakeModels{errs: []error{apiErr, apiErr, apiErr}}
	gen := testGenerator(models, 2)
	gen.baseDelay = 1

	_, err := gen.Generate(context.Background(), calcRequest)
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.Equal(t, 3, models.calls)
}

func TestGenerator_PermanentFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		wantErr error
	}{
		{name: "nil response", resp: nil, wantErr: generation.ErrInvalidResponse},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantErr: generation.ErrInvalidResponse},
		{
			name: "safety block",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonSafety,
			}}},
			wantErr: generation.ErrContentBlocked,
		},
		{
			name:    "empty text",
			resp:    textResponse(""),
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name:    "not json",
			resp:    textResponse("I'd rather not."),
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name:    "unsafe path",
			resp:    textResponse(`{"/etc/passwd": "root"}`),
			wantErr: generation.ErrUnsafePath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			models := &fakeModels{responses: []*genai.GenerateContentResponse{tt.resp}}
			gen := testGenerator(models, 3)

			_, err := gen.Generate(context.Background(), calcRequest)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, models.calls, "permanent failures are not retried")
		})
	}
}

func TestGenerator_RejectsEmptyIdea(t *testing.T) {
	t.Parallel()
	models := &fakeModels{}
	_, err := testGenerator(models, 0).Generate(context.Background(), generation.Request{Name: "x"})
	assert.ErrorIs(t, err, generation.ErrGenerationFailed)
	assert.Equal(t, 0, models.calls)
}

func TestGenerator_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	models := &fakeModels{errs: []error{context.Canceled}}

	_, err := testGenerator(models, 5).Generate(ctx, calcRequest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, models.calls)
}
