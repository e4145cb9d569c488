// Package task runs generation jobs in the background. A WorkerPool pulls
// payloads from the queue, claims each job in the registry, generates and
// stores its artifact and records the outcome.
package task
