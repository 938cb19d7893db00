package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/dirwatch/internal/browser"
	"github.com/listenupapp/dirwatch/internal/config"
	"github.com/listenupapp/dirwatch/internal/feed"
	"github.com/listenupapp/dirwatch/internal/logger"
	"github.com/listenupapp/dirwatch/internal/monitor"
	"github.com/listenupapp/dirwatch/internal/sse"
	"github.com/listenupapp/dirwatch/internal/watcher"
)

// SSEManagerHandle wraps sse.Manager with Shutdownable.
type SSEManagerHandle struct {
	*sse.Manager
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the stream manager and starts its broadcast loop.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)
	manager.Start(context.Background())

	return &SSEManagerHandle{Manager: manager}, nil
}

// ProvideMonitor provides the watch view state. Updates are published to stream clients.
func ProvideMonitor(i do.Injector) (*monitor.Monitor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	return monitor.New(monitor.Options{MaxRows: cfg.Watch.MaxRows}, sseHandle.Manager, log.Logger), nil
}

// FeedHandle wraps the message queue and its consumer.
type FeedHandle struct {
	*feed.Queue
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable. Queued messages are applied before it returns.
func (h *FeedHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.cancel()
	return h.Queue.Shutdown(ctx)
}

// ProvideFeed provides the queue between watch sessions and the monitor.
func ProvideFeed(i do.Injector) (*FeedHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	mon := do.MustInvoke[*monitor.Monitor](i)

	queue := feed.NewQueue(log.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	go queue.Run(ctx, mon.Apply)

	return &FeedHandle{Queue: queue, cancel: cancel}, nil
}

// ProvideController provides the watch controller. Sessions deliver into the feed.
func ProvideController(i do.Injector) (*watcher.Controller, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	feedHandle := do.MustInvoke[*FeedHandle](i)

	return watcher.NewController(feedHandle.Queue, log.Logger, watcher.Options{
		BufferSize: cfg.Watch.BufferSize,
	}), nil
}

// ProvideBrowser provides the directory snapshot builder.
func ProvideBrowser(i do.Injector) (*browser.Builder, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return browser.NewBuilder(browser.Options{
		Locale:        cfg.Browser.Locale,
		DetectContent: cfg.Browser.DetectContent,
	}, log.Logger), nil
}
