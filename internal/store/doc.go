// Package store defines the job registry interface shared by the in-memory
// and Postgres implementations, along with the error values callers use to
// tell a missing job from a duplicate, an invalid entity or a failed write.
package store
