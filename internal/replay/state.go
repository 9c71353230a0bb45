package replay

// A session is always in exactly one of the states below. Each state only has methods for
// the transitions that are legal from it, so the engine cannot, say, resume a running
// session: there is no runningState.resume to call.
type state interface {
	status() Status
}

type pendingState struct{}

type runningState struct{}

type pausedState struct {
	// resume is closed when the session leaves the paused state.
	resume chan struct{}
}

type terminalState struct {
	final Status
	err   string
}

func (pendingState) status() Status { return StatusPending }
func (runningState) status() Status { return StatusRunning }
func (pausedState) status() Status { return StatusPaused }
func (s terminalState) status() Status { return s.final }

func (pendingState) start() runningState {
	return runningState{}
}

func (runningState) pause() pausedState {
	return pausedState{resume: make(chan struct{})}
}

func (runningState) stop() terminalState {
	return terminalState{final: StatusCancelled}
}

func (runningState) complete() terminalState {
	return terminalState{final: StatusCompleted}
}

func (runningState) fail(err error) terminalState {
	return terminalState{final: StatusFailed, err: err.Error()}
}

func (p pausedState) resumeRun() runningState {
	close(p.resume)
	return runningState{}
}

func (p pausedState) stop() terminalState {
	close(p.resume)
	return terminalState{final: StatusCancelled}
}

// fail covers an unrecoverable error detected in a batch that was in flight when the
// pause was requested.
func (p pausedState) fail(err error) terminalState {
	close(p.resume)
	return terminalState{final: StatusFailed, err: err.Error()}
}
