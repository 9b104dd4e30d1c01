package scene

import "errors"

// Domain errors for the scene package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, scene.ErrSceneNotFound) {
//	    // handle not found case
//	}
var (
	// ErrSceneNotFound is returned when a scene ID does not exist.
	ErrSceneNotFound = errors.New("scene: not found")

	// ErrSceneExists is returned when two scenes share an ID.
	ErrSceneExists = errors.New("scene: already exists")

	// ErrInvalidScene is returned when scene validation fails.
	ErrInvalidScene = errors.New("scene: invalid")
)
