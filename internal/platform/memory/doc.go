// Package memory provides an in-process implementation of the job registry,
// used when no database is configured and throughout the tests.
package memory
