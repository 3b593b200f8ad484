// Package domain defines the channel, vote and chat message types shared by
// the game and its adapters, together with the interfaces adapters implement.
package domain
