package models

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTargetType   = errors.New("invalid report target type")
	ErrAppealWindowExpired = errors.New("appeal window has expired (30 days from moderation action)")
	ErrAppealExists        = errors.New("an appeal has already been submitted")
	ErrNoPendingAppeal     = errors.New("no pending appeal to resolve")
)
