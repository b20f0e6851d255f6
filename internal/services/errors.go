package services

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrCardIDRequired     = errors.New("card_id is required")
	ErrCardNotFound       = errors.New("card not found")
	ErrCardNotActive      = errors.New("card not active")
	ErrStudentNotFound    = errors.New("student not found")
	ErrCardAlreadyIssued  = errors.New("student already has a card")
	ErrInvalidTransition  = errors.New("card status does not allow this action")
	ErrCardChanged        = errors.New("card was modified concurrently, retry")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is not active")
)
