package fetch

import "slices"

// Status is the lifecycle position of a [Controller].
type Status int

const (
	Idle Status = iota
	Loading
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of a controller.
//
// Page stays within [1, max(TotalPages, 1)]. Items belong to the latest completed request for
// (Query, Page) and are empty otherwise.
type State[T any] struct {
	Query      string
	Page       int
	TotalPages int
	TotalCount int
	Items      []T
	Status     Status
	Err        string
}

// HasNext reports whether a next page exists.
func (s State[T]) HasNext() bool { return s.Page < s.TotalPages }

// HasPrev reports whether a previous page exists.
func (s State[T]) HasPrev() bool { return s.Page > 1 }

func (s State[T]) clone() State[T] {
	s.Items = slices.Clone(s.Items)
	return s
}
