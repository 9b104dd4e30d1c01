package automation

import "errors"

// Domain errors for the automation package.
var (
	// ErrInvalidDefinitions is returned when the automation file cannot be
	// parsed or fails validation.
	ErrInvalidDefinitions = errors.New("automation: invalid definitions")

	// ErrSceneNotFound is returned when an action names an unknown scene.
	ErrSceneNotFound = errors.New("automation: scene not found")

	// ErrInvalidAction is returned when an action cannot be executed as given.
	ErrInvalidAction = errors.New("automation: invalid action")

	// ErrInvalidStateReport is returned when a bridge state message is malformed.
	ErrInvalidStateReport = errors.New("automation: invalid state report")
)
