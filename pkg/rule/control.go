package rule

// ControlFlow is the signal a directive, rule or rule set returns to its caller.
type ControlFlow uint8

const (
	FlowContinue ControlFlow = iota
	FlowStop
	FlowCancelled
	FlowCancelledSilently
)

// Halts reports whether evaluation must end.
func (f ControlFlow) Halts() bool {
	return f != FlowContinue
}

// Cancelled reports whether the message was cancelled.
func (f ControlFlow) Cancelled() bool {
	return f == FlowCancelled || f == FlowCancelledSilently
}

// then folds the flow of a later step into f. A cancellation is kept once
// recorded and a silent one stays silent; stop only survives without one.
func (f ControlFlow) then(next ControlFlow) ControlFlow {
	switch {
	case f == FlowCancelledSilently || next == FlowCancelledSilently:
		return FlowCancelledSilently
	case f.Cancelled() || next.Cancelled():
		return FlowCancelled
	case f == FlowStop || next == FlowStop:
		return FlowStop
	}
	return FlowContinue
}

func (f ControlFlow) String() string {
	switch f {
	case FlowContinue:
		return "continue"
	case FlowStop:
		return "stop"
	case FlowCancelled:
		return "cancelled"
	case FlowCancelledSilently:
		return "cancelled_silently"
	default:
		return "unknown"
	}
}
