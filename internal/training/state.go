package training

// State is a phase of a training run.
type State int

// Run phases, in order. Failed may follow any phase.
const (
	StateInitializing State = iota
	StateTrainEpoch
	StateValidateEpoch
	StateFinalizing
	StateDone
	StateFailed
)

// String returns the phase name used in logs.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateTrainEpoch:
		return "train_epoch"
	case StateValidateEpoch:
		return "validate_epoch"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
