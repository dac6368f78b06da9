package domain

import "errors"

var (
	ErrValidation        = errors.New("invalid input")
	ErrUnauthorized      = errors.New("not authorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrUserExists        = errors.New("user already exists")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrGateway           = errors.New("payment gateway error")
	// ErrGatewayNotConfigured is returned by endpoints that need a payment gateway when none is set up.
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
)
