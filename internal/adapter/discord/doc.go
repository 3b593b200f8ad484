// Package discord talks to the chat service: the gateway WebSocket session
// that receives events, the event router that decodes them, and the REST
// client used to answer.
package discord
