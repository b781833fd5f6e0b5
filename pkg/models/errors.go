package models

import "errors"

// Terrain generation errors. All of them are terminal for a request.
var (
	ErrEmptyInput        = errors.New("no vertices accumulated")
	ErrInvalidTargetSize = errors.New("invalid target size")
	ErrRaggedGrid        = errors.New("grid rows have unequal length")
	ErrInvalidState      = errors.New("invalid terrain state")
	ErrWrite             = errors.New("terrain output write failed")
	ErrNoLOD             = errors.New("no LOD available")
)
