// Package problem loads problem definitions: named, ordered sets of test
// cases, each with a standard input payload and a time limit.
package problem

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is wrapped by Store.Lookup when no definition exists for a name.
var ErrNotFound = errors.New("problem not found")

// Case is one trial of a problem.
type Case struct {
	Name  string
	Input []byte
	// TimeLimit is the wall-clock limit in seconds.
	TimeLimit int
}

// Timeout returns the time limit as a duration.
func (c Case) Timeout() time.Duration {
	return time.Duration(c.TimeLimit) * time.Second
}

// Problem is a named, ordered list of cases.
type Problem struct {
	Name  string
	Cases []Case
}

// Store resolves problem names to definitions.
type Store interface {
	// Lookup loads the named problem. Failures are I/O-class and wrap
	// ErrNotFound when the definition does not exist.
	Lookup(ctx context.Context, name string) (Problem, error)

	// Available lists the names of all loadable problems. It fails open,
	// returning an empty list when the listing cannot be produced.
	Available(ctx context.Context) []string
}
