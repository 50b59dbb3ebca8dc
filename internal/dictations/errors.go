package dictations

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNoAssets         = errors.New("at least one file is required")
	ErrPasswordTooShort = errors.New("password too short")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)
