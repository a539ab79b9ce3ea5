package biz

import "errors"

var (
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrWeakSecret          = errors.New("password does not meet minimum length")
	ErrInvalidRole         = errors.New("invalid role")
	ErrDuplicateInvitation = errors.New("a pending invitation already exists for this email")
	ErrResetExpired        = errors.New("password reset is invalid or expired")
	ErrInternal            = errors.New("server internal error, please try again later")
)
