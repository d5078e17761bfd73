package pipeline

// State is the phase a produce run is in. Transitions only move forward:
// an encoding failure goes straight to StateFailed without anything sent,
// a send-time rejection skips StateAwaitingAcks, and StateDone is reached
// only once every delivery outcome is positive.
type State int

const (
	StateIdle State = iota
	StateEncoding
	StateSending
	StateAwaitingAcks
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return `Idle`
	case StateEncoding:
		return `Encoding`
	case StateSending:
		return `Sending`
	case StateAwaitingAcks:
		return `AwaitingAcks`
	case StateDone:
		return `Done`
	case StateFailed:
		return `Failed`
	}

	return `Unknown`
}
