package store

import "errors"

// Predefined errors for the store layer.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrActiveVoteExists is returned when a write would leave two active votes in one room.
	ErrActiveVoteExists = errors.New("room already has an active vote")

	// ErrAlreadyVoted is returned when a device casts a second ballot on the same vote.
	ErrAlreadyVoted = errors.New("device has already voted")
)
