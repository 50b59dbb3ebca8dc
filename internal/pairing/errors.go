package pairing

import "errors"

var (
	ErrNotFound     = errors.New("pairing code not found")
	ErrExpired      = errors.New("pairing code expired")
	ErrInvalidScope = errors.New("invalid scope")
	ErrInvalidCode  = errors.New("invalid pairing code")
)
