package handler

import "errors"

var (
	ErrPromptTooShort = errors.New("prompt too short")
	ErrRestricted     = errors.New("prompt contains restricted content")
)
