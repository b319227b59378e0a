package search

// State is the coordinator's position in the query lifecycle.
//
//	Idle -> Debouncing -> InFlight -> Success | Failed
//	InFlight -> Cancelled -> InFlight (superseded by a newer execution)
//
// Success and Failed are resting states; the next input leaves them the
// same way it leaves Idle.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateInFlight   State = "in_flight"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Mode says how a fetched page is merged into the displayed list.
type Mode int

const (
	// Reset replaces the list wholesale (new search).
	Reset Mode = iota
	// Append concatenates the page (load more).
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "reset"
}
