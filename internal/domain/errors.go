package domain

import "errors"

var (
	ErrChannelAlreadyRegistered = errors.New("channel already registered")
	ErrChannelNotFound          = errors.New("channel not found")
	ErrInvalidChannelID         = errors.New("invalid channel id")
)
