package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/dirwatch/internal/browser"
)

func (s *Server) registerFilesystemRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "browseFilesystem",
		Method:      http.MethodGet,
		Path:        "/api/v1/filesystem",
		Summary:     "Browse a directory",
		Description: "Lists a directory in display order and records it as the current directory. " +
			"Without a path, the current directory is listed.",
		Tags: []string{"Filesystem"},
	}, s.handleBrowseFilesystem)
}

// BrowseFilesystemInput contains parameters for browsing the filesystem.
type BrowseFilesystemInput struct {
	Path string `query:"path" maxLength:"4096" doc:"Directory path to browse"`
}

// BrowseFilesystemOutput wraps the response for Huma.
type BrowseFilesystemOutput struct {
	Body *browser.Snapshot
}

func (s *Server) handleBrowseFilesystem(ctx context.Context, input *BrowseFilesystemInput) (*BrowseFilesystemOutput, error) {
	path := input.Path
	if path == "" {
		path = s.Monitor.CurrentDir()
	}
	if path == "" {
		path = s.StartPath
	}
	if path == "" {
		path = "/"
	}

	snap, err := s.Builder.Build(ctx, path)
	if err != nil {
		s.logger.Debug("browse failed", "path", path, "error", err)
		return nil, toStatusError(err)
	}

	s.Monitor.SetCurrentDir(snap.Path)
	return &BrowseFilesystemOutput{Body: snap}, nil
}
