package services

import "errors"

// ErrNotFound is returned when a campaign summary is requested for a
// campaign that does not exist.
var ErrNotFound = errors.New("entity not found")
