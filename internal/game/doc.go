// Package game holds the shared, concurrency-safe game state: the registry of
// channels with their accepted vocabularies, and the set of admission votes
// that are still open.
package game
