package watcher

import "fmt"

// Phase is the lifecycle phase of the controller's session slot.
type Phase int

const (
	// PhaseIdle means no session has run yet.
	PhaseIdle Phase = iota
	// PhaseStarting means a session is opening its watch.
	PhaseStarting
	// PhaseRunning means a session is watching.
	PhaseRunning
	// PhaseStopRequested means cancellation was signaled and the worker is being joined.
	PhaseStopRequested
	// PhaseStopped means the last session ended; see SessionState.Reason.
	PhaseStopped
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopRequested:
		return "stop_requested"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Cause classifies why a session ended.
type Cause int

const (
	// CauseUserRequested means Stop was called.
	CauseUserRequested Cause = iota
	// CauseTargetVanished means the watched directory was deleted.
	CauseTargetVanished
	// CauseTargetMoved means the watched directory was moved.
	CauseTargetMoved
	// CauseKernelError means waiting on or reading the notification source failed.
	CauseKernelError
	// CauseSetupError means the watch could not be established.
	CauseSetupError
)

// String returns the string representation of the cause.
func (c Cause) String() string {
	switch c {
	case CauseUserRequested:
		return "user_requested"
	case CauseTargetVanished:
		return "target_vanished"
	case CauseTargetMoved:
		return "target_moved"
	case CauseKernelError:
		return "kernel_error"
	case CauseSetupError:
		return "setup_error"
	default:
		return "unknown"
	}
}

// StopReason is why a session ended. Message is only set for kernel and setup errors.
type StopReason struct {
	Cause   Cause
	Message string
}

func (r StopReason) String() string {
	if r.Message == "" {
		return r.Cause.String()
	}
	return fmt.Sprintf("%s: %s", r.Cause, r.Message)
}

// SessionState is the controller's view of its session slot.
// Reason is meaningful only in PhaseStopped.
type SessionState struct {
	Phase  Phase
	Reason StopReason
}

// Active reports whether a session occupies the slot.
func (s SessionState) Active() bool {
	return s.Phase == PhaseStarting || s.Phase == PhaseRunning || s.Phase == PhaseStopRequested
}
