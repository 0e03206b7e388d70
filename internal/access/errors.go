package access

import "errors"

var (
	ErrInvalidInput        = errors.New("access: invalid input")
	ErrNotFound            = errors.New("access: not found")
	ErrImmutableField      = errors.New("access: immutable field")
	ErrSystemRole          = errors.New("access: system role is protected")
	ErrDuplicateAssignment = errors.New("access: assignment already exists")
	ErrSessionExpired      = errors.New("access: session expired")
	ErrUnauthorized        = errors.New("access: unauthorized")
	ErrInvalidToken        = errors.New("access: invalid token")
)
