// Package gemini provides an implementation of the generation.Generator
// interface backed by Google's Gemini API.
//
// The generator asks the model for a JSON object mapping file paths to file
// contents, extracts the first JSON object from the reply and validates the
// paths. API errors are retried with exponential backoff and jitter; malformed
// replies and safety blocks are returned immediately.
package gemini
