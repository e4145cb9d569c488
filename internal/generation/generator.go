package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Request describes the project to generate.
type Request struct {
	Name     string
	Idea     string
	Template string
	Options  map[string]any
}

// Artifact is a generated project: relative file path to file content.
type Artifact struct {
	Files map[string]string
}

// Generator defines the interface for generating a project from an idea.
// This interface serves as a boundary between the job pipeline and
// external AI/LLM services.
type Generator interface {
	// Generate produces the project files for req.
	// Implementations must honour ctx cancellation; the caller bounds each call with a deadline.
	Generate(ctx context.Context, req Request) (*Artifact, error)
}

// Validate checks that the artifact has at least one file and that every
// path stays inside the project root.
func (a *Artifact) Validate() error {
	if a == nil || len(a.Files) == 0 {
		return fmt.Errorf("%w: artifact has no files", ErrInvalidResponse)
	}
	for p := range a.Files {
		if err := ValidatePath(p); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePath rejects empty, absolute and parent-escaping paths.
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || strings.Contains(p, ":") {
		return fmt.Errorf("%w: %q is absolute", ErrUnsafePath, p)
	}
	clean := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q escapes the project root", ErrUnsafePath, p)
	}
	return nil
}

// jsonObjectPattern matches from the first '{' to the last '}'.
var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseFileMapping extracts a JSON object of path -> content from free text,
// such as a model reply wrapped in prose or code fences.
func ParseFileMapping(text string) (*Artifact, error) {
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", ErrInvalidResponse, err)
	}

	files := make(map[string]string, len(raw))
	for p, v := range raw {
		content, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: content for %q is not a string", ErrInvalidResponse, p)
		}
		files[p] = content
	}

	artifact := &Artifact{Files: files}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return artifact, nil
}
