package pipeline

type State string

const (
	StateIdle           State = "idle"
	StateDiscovering    State = "discovering"
	StateExtractingItem State = "extracting_item"
	StateReconciling    State = "reconciling"
	StatePersisting     State = "persisting"
	StateDone           State = "done"
	StateFatalError     State = "fatal_error"
	StateCancelled      State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFatalError || s == StateCancelled
}
