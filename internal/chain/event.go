package chain

import (
	"fmt"

	"github.com/rxtech-lab/argo-chain/internal/types"
)

// Event is the interval notification being dispatched.
type Event int

const (
	EventIntervalOpen Event = iota
	EventIntervalClose
)

func (e Event) String() string {
	switch e {
	case EventIntervalOpen:
		return "interval_open"
	case EventIntervalClose:
		return "interval_close"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// DispatchError reports the stage that failed while handling an event.
// The wrapped error carries errors.ErrCodeDispatch.
type DispatchError struct {
	Stage    string
	Event    Event
	Interval types.Interval
	Err      error
}

func (e *DispatchError) Error() string {
	if e == nil {
		return ""
	}

	return e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
