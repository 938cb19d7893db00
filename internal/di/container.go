// Package di provides dependency injection configuration for the dirwatch server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/dirwatch/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Presentation state
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideMonitor)
	do.Provide(injector, providers.ProvideFeed)

	// Watching and browsing
	do.Provide(injector, providers.ProvideController)
	do.Provide(injector, providers.ProvideBrowser)

	// Server
	do.Provide(injector, providers.ProvideControlLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services.
// Invoking the HTTP server pulls in everything it depends on, so shutdown
// runs in reverse: server, controller, feed, monitor, stream manager.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
