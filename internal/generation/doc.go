// Package generation turns a project idea into a set of files.
//
// The Generator interface is the boundary to content generation. Concrete
// generators include an LLM-backed one (see internal/platform/gemini), a
// built-in template renderer, and a FallbackGenerator that tries the first
// and falls back to the second. Package zips an Artifact for storage.
package generation
