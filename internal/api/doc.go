// Package api exposes the job pipeline over HTTP: job submission, status
// lookups, a health check and the WebSocket push channel that streams job
// lifecycle events. Handlers translate HTTP concerns into service calls and
// map service errors onto safe status codes and messages.
package api
