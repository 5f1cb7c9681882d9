// Package events announces catalog changes made through a console workspace.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/inventory-console/internal/refresh"
	"github.com/abgdnv/inventory-console/pkg/messaging"
	msgevents "github.com/abgdnv/inventory-console/pkg/messaging/events"
)

const defaultPublishTimeout = 5 * time.Second

// Notifier publishes a CatalogChangedEvent every time a watched refresh signal fires.
type Notifier struct {
	publisher messaging.Publisher
	subject   string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewNotifier bounds every publish by timeout; a non-positive timeout selects the default.
func NewNotifier(publisher messaging.Publisher, subject string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Notifier{
		publisher: publisher,
		subject:   subject,
		timeout:   timeout,
		logger:    logger.With("component", "notifier"),
		now:       time.Now,
	}
}

// Watch publishes for signal until ctx is done. Publish failures are logged and never reach the workspace.
func (n *Notifier) Watch(ctx context.Context, workspaceID string, signal *refresh.Signal) {
	versions := signal.Subscribe(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for v := range versions {
			event := msgevents.NewCatalogChangedEvent(n.subject, workspaceID, uint64(v), n.now())
			// the subscription context is cancelled on eviction; the last event still goes out
			pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
			err := n.publisher.Publish(pubCtx, event)
			cancel()
			if err != nil {
				n.logger.WarnContext(ctx, "failed to publish catalog change", "workspace_id", workspaceID, "version", v, "error", err)
				continue
			}
			n.logger.DebugContext(ctx, "catalog change published", "workspace_id", workspaceID, "version", v)
		}
	}()
}

// Wait blocks until every watcher has stopped.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
