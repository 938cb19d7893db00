package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/dirwatch/internal/errors"
	"github.com/listenupapp/dirwatch/internal/monitor"
	"github.com/listenupapp/dirwatch/internal/watcher"
)

func (s *Server) registerWatchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getWatch",
		Method:      http.MethodGet,
		Path:        "/api/v1/watch",
		Summary:     "Get watch status",
		Description: "Returns the session state, listening and error labels and the entries counter.",
		Tags:        []string{"Watch"},
	}, s.handleGetWatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "startWatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/watch",
		Summary:     "Start watching a directory",
		Description: "Returns once the session is watching. Without a path, the current directory is watched.",
		Tags:        []string{"Watch"},
		Middlewares: huma.Middlewares{s.limitControl},
		Errors:      []int{http.StatusConflict, http.StatusUnprocessableEntity},
	}, s.handleStartWatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "stopWatch",
		Method:      http.MethodDelete,
		Path:        "/api/v1/watch",
		Summary:     "Stop watching",
		Description: "Returns after the session released its kernel resources.",
		Tags:        []string{"Watch"},
		Middlewares: huma.Middlewares{s.limitControl},
		Errors:      []int{http.StatusConflict},
	}, s.handleStopWatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "listWatchEvents",
		Method:      http.MethodGet,
		Path:        "/api/v1/watch/events",
		Summary:     "List event rows",
		Description: "Returns rows with a sequence number greater than since.",
		Tags:        []string{"Watch"},
	}, s.handleListEvents)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearWatchEvents",
		Method:      http.MethodDelete,
		Path:        "/api/v1/watch/events",
		Summary:     "Clear event rows",
		Description: "Drops every row, resets the entries counter and hides the error label.",
		Tags:        []string{"Watch"},
	}, s.handleClearEvents)
}

// WatchStatus is the watch state as seen by a client.
type WatchStatus struct {
	State  string `json:"state" doc:"Session state: idle, starting, running, stop_requested or stopped"`
	Reason string `json:"reason,omitempty" doc:"Why the last session stopped"`
	monitor.Status
}

// WatchStatusOutput wraps the watch status for Huma.
type WatchStatusOutput struct {
	Body WatchStatus
}

// StartWatchRequest is the body of a start request.
type StartWatchRequest struct {
	Path string `json:"path,omitempty" validate:"watchpath" doc:"Directory to watch; defaults to the current directory"`
}

// StartWatchInput wraps the start request for Huma.
type StartWatchInput struct {
	Body StartWatchRequest
}

// ListEventsInput contains parameters for listing rows.
type ListEventsInput struct {
	Since uint64 `query:"since" doc:"Return rows with a sequence number greater than this"`
}

// ListEventsResponse contains rows and the status they belong to.
type ListEventsResponse struct {
	Rows   []monitor.Row  `json:"rows" doc:"Rows in sequence order"`
	Status monitor.Status `json:"status" doc:"Status at the time of the listing"`
}

// ListEventsOutput wraps the rows for Huma.
type ListEventsOutput struct {
	Body ListEventsResponse
}

func (s *Server) handleGetWatch(ctx context.Context, _ *struct{}) (*WatchStatusOutput, error) {
	return &WatchStatusOutput{Body: s.watchStatus(ctx)}, nil
}

func (s *Server) handleStartWatch(ctx context.Context, input *StartWatchInput) (*WatchStatusOutput, error) {
	if err := s.Validator.Validate(input.Body); err != nil {
		return nil, toStatusError(err)
	}

	path := input.Body.Path
	if path == "" {
		path = s.Monitor.CurrentDir()
	}
	if path == "" {
		path = s.StartPath
	}
	if path == "" {
		return nil, toStatusError(domainerrors.Validation("path is required when no start directory is configured"))
	}

	if err := s.Controller.Start(path); err != nil {
		// The session's FatalError is queued; let the monitor show it.
		s.syncFeed(ctx)
		return nil, toStatusError(err)
	}

	return &WatchStatusOutput{Body: s.watchStatus(ctx)}, nil
}

func (s *Server) handleStopWatch(ctx context.Context, _ *struct{}) (*WatchStatusOutput, error) {
	if err := s.Controller.Stop(); err != nil {
		return nil, toStatusError(err)
	}
	return &WatchStatusOutput{Body: s.watchStatus(ctx)}, nil
}

func (s *Server) handleListEvents(ctx context.Context, input *ListEventsInput) (*ListEventsOutput, error) {
	s.syncFeed(ctx)

	// Status first: rows read afterwards are never older than the counter.
	status := s.Monitor.Status()
	return &ListEventsOutput{
		Body: ListEventsResponse{
			Rows:   s.Monitor.Rows(input.Since),
			Status: status,
		},
	}, nil
}

func (s *Server) handleClearEvents(ctx context.Context, _ *struct{}) (*WatchStatusOutput, error) {
	s.syncFeed(ctx)
	s.Monitor.Clear()
	return &WatchStatusOutput{Body: s.watchStatus(ctx)}, nil
}

// watchStatus combines the controller state with the monitor view once every
// message queued so far has been applied.
func (s *Server) watchStatus(ctx context.Context) WatchStatus {
	s.syncFeed(ctx)

	state := s.Controller.State()
	ws := WatchStatus{
		State:  state.Phase.String(),
		Status: s.Monitor.Status(),
	}
	if state.Phase == watcher.PhaseStopped {
		ws.Reason = state.Reason.String()
	}
	return ws
}

func (s *Server) syncFeed(ctx context.Context) {
	if s.Feed == nil {
		return
	}
	if err := s.Feed.Sync(ctx); err != nil {
		s.logger.Debug("feed sync interrupted", "error", err)
	}
}
