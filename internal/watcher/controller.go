package watcher

import (
	"log/slog"
	"path/filepath"
	"sync"

	domainerrors "github.com/listenupapp/dirwatch/internal/errors"
	"github.com/listenupapp/dirwatch/internal/id"
)

// Controller owns the single watch session slot.
// At most one session exists at any time; Stop returns only after the
// session released its kernel resources, so Start may follow immediately.
type Controller struct {
	sink   Sink
	logger *slog.Logger
	open   openFunc
	opts   Options

	mu     sync.Mutex
	active *session
	target string
	state  SessionState
}

// NewController creates a controller that reports to sink.
// On Linux sessions read inotify directly; elsewhere they use fsnotify.
func NewController(sink Sink, logger *slog.Logger, opts Options) *Controller {
	return newController(sink, logger, opts, openSource)
}

func newController(sink Sink, logger *slog.Logger, opts Options, open openFunc) *Controller {
	opts.setDefaults()
	return &Controller{
		sink:   sink,
		logger: logger.With("component", "watcher"),
		open:   open,
		opts:   opts,
	}
}

// Start watches path. It returns once the session is watching or failed to set up.
func (c *Controller) Start(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	if c.state.Active() {
		return domainerrors.AlreadyRunningf("already watching %s", c.target)
	}

	if path == "" {
		return domainerrors.Validation("watch path is required")
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid watch path %q", path)
	}

	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create session")
	}

	s := newSession(sessionID, target, c.opts, c.sink, c.open, c.logger)
	c.state = SessionState{Phase: PhaseStarting}
	c.target = target

	ready := make(chan error, 1)
	go s.run(ready)

	if err := <-ready; err != nil {
		<-s.done
		c.state = SessionState{Phase: PhaseStopped, Reason: s.reason}
		return domainerrors.Wrapf(err, domainerrors.CodeSetupFailed, "can't watch '%s'", target)
	}

	c.active = s
	c.state = SessionState{Phase: PhaseRunning}
	return nil
}

// Stop cancels the running session and waits for it to release its resources.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	if c.state.Phase != PhaseRunning {
		return domainerrors.ErrNotRunning
	}

	s := c.active
	c.state = SessionState{Phase: PhaseStopRequested}
	s.cancel()
	<-s.done

	c.active = nil
	c.state = SessionState{Phase: PhaseStopped, Reason: s.reason}
	return nil
}

// State returns the current state of the session slot.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reapLocked()
	return c.state
}

// Target returns the path of the current or most recent session.
func (c *Controller) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Shutdown stops the running session, if any.
func (c *Controller) Shutdown() error {
	if err := c.Stop(); err != nil && !domainerrors.Is(err, domainerrors.ErrNotRunning) {
		return err
	}
	return nil
}

// reapLocked collects a session whose worker already exited on its own.
func (c *Controller) reapLocked() {
	if c.active == nil {
		return
	}
	select {
	case <-c.active.done:
		c.state = SessionState{Phase: PhaseStopped, Reason: c.active.reason}
		c.active = nil
	default:
	}
}
