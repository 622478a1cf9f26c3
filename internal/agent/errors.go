package agent

import "fmt"

// StreamError reports a failed model generation. The turn that raised
// it is aborted and nothing from the failed step is committed.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("model stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// MaxToolStepsError reports a turn that hit the tool round-trip bound
// without the model producing a final answer.
type MaxToolStepsError struct {
	Steps int
}

func (e *MaxToolStepsError) Error() string {
	return fmt.Sprintf("exceeded maximum of %d tool steps in one turn", e.Steps)
}
