package model

import "errors"

var (
	// ErrInvalidInput is returned by Validate methods. Mutations check their
	// inputs before any REST call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownRole is returned when a member role string is not recognised.
	ErrUnknownRole = errors.New("unknown role")
)
