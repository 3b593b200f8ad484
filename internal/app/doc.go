// Package app provides the game layer that reacts to chat events.
//
// Game registers channels on mention, runs the per-word checks concurrently and
// resolves admission votes from reaction counts. It depends on domain interfaces
// and consumer-side views of the channel store and vote tracker.
package app
