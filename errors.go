package demmosaic

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTiles is returned when a batch yields no usable tiles.
	ErrNoTiles = errors.New("no tiles parsed")

	// ErrEmptyGrid is returned when clustering yields zero rows or
	// columns.
	ErrEmptyGrid = errors.New("empty tile grid")

	errShortRead = errors.New("short read")
)

// A ParseError reports a structurally malformed tile document. The tile
// is excluded; the batch continues.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// A ShapeMismatchError reports a well-formed tile whose grid shape
// differs from the configured expectation. The tile is excluded with a
// warning; the batch continues.
type ShapeMismatchError struct {
	Path     string
	Rows     int
	Cols     int
	WantRows int
	WantCols int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: grid shape (%d,%d), expected (%d,%d)",
		e.Path, e.Rows, e.Cols, e.WantRows, e.WantCols)
}
