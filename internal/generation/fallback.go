package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/sentinel/internal/platform/logger"
)

// FallbackGenerator tries a primary generator and, when it fails or returns
// nothing usable, renders with the fallback generator instead.
type FallbackGenerator struct {
	primary  Generator
	fallback Generator
}

// Ensure FallbackGenerator implements Generator
var _ Generator = (*FallbackGenerator)(nil)

// NewFallbackGenerator creates a FallbackGenerator. primary may be nil, in
// which case the fallback is used directly.
func NewFallbackGenerator(primary, fallback Generator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, fallback: fallback}
}

// Generate runs the primary generator and falls back on error.
// A cancelled or expired ctx is returned as is; the fallback is not attempted.
func (g *FallbackGenerator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	log := logger.FromContext(ctx)

	if g.primary != nil {
		artifact, err := g.primary.Generate(ctx, req)
		if err == nil {
			err = artifact.Validate()
		}
		if err == nil {
			return artifact, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Warn("primary generator failed, using templates", "error", err)
	}

	if g.fallback == nil {
		return nil, fmt.Errorf("%w: no fallback generator", ErrGenerationFailed)
	}
	return g.fallback.Generate(ctx, req)
}
