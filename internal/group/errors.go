package group

import "errors"

// Domain errors for the group package.
var (
	// ErrGroupNotFound is returned when a group ID does not exist.
	ErrGroupNotFound = errors.New("group: not found")

	// ErrGroupExists is returned when two groups share an ID.
	ErrGroupExists = errors.New("group: already exists")

	// ErrInvalidGroup is returned when group validation fails.
	ErrInvalidGroup = errors.New("group: invalid")
)
