package models

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrChatNotFound         = errors.New("chat not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrDuplicateIdentity    = errors.New("user with this email or username already exists")
	ErrInvalidCredential    = errors.New("invalid email or password")
	ErrInvalidOrExpiredOtp  = errors.New("invalid or expired code")
	ErrEmptyMessage         = errors.New("message has no content")
	ErrValidation           = errors.New("validation failed")
	ErrUserNotParticipant   = errors.New("user is not a participant")
	ErrNotAdmin             = errors.New("user is not the chat admin")
	ErrBlocked              = errors.New("user is blocked")
)
