// Package events defines job lifecycle events and the notification hub that
// fans them out to live subscribers.
//
// The Hub owns its subscriber set inside a single goroutine; Connect,
// Disconnect, Broadcast and Receive are requests sent to that goroutine over
// a channel, so no caller ever touches the set directly. A subscriber whose
// send fails is evicted on the spot.
//
// Emitters decouple producers of events (the dispatcher and the workers)
// from where events go: the hub in the API process, or a Redis channel that
// an API process relays into its hub when workers run elsewhere.
package events
