package services

import "errors"

var (
	ErrCodeNotFound = errors.New("code not found")
	ErrCodeExpired  = errors.New("code expired")
	ErrCodeUsed     = errors.New("code already used")
	ErrCodeMismatch = errors.New("code mismatch")

	ErrEmailTaken = errors.New("email bound to another account")
)
