// Package service provides the application services behind the HTTP API:
// the dispatcher that accepts generation jobs and the status service that
// reports on them.
package service
