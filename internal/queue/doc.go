// Package queue provides the backends that carry submitted jobs from the API
// to the worker pool.
//
// Three implementations share the Backend interface: an in-process buffered
// channel, a Redis list, and an NSQ topic. Delivery is at-most-once per
// worker; a payload handed to one Dequeue call is never handed to another
// by the same backend instance.
package queue
