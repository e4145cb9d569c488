// Package domain contains the core business entities of the generation
// service: jobs, their lifecycle states and the validation rules that guard
// state transitions. It is independent of any storage or delivery mechanism.
package domain
