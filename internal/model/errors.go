package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidRange = errors.New("invalid range")
	ErrBadTimezone  = errors.New("bad timezone")
	ErrPartialSync  = errors.New("partial sync failure")

	// the specific lookups all match ErrNotFound as well
	ErrOwnerNotFound     = fmt.Errorf("owner %w", ErrNotFound)
	ErrProjectNotFound   = fmt.Errorf("project %w", ErrNotFound)
	ErrRehearsalNotFound = fmt.Errorf("rehearsal %w", ErrNotFound)
)
