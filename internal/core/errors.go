package core

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrImportBlocked     = errors.New("import blocked")
	ErrUnknownTable      = errors.New("unknown table")
	ErrInvalidMapping    = errors.New("invalid mapping")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrTemplateExists    = errors.New("template already exists")
)
