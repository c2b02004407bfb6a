package server

import (
	"context"
	"log/slog"

	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/notify"
	"github.com/scrypster/storyblok-devtools/web/handlers"
)

// EventHandler reacts to cache events written by the CLI. A fresh analysis
// of the current subject is picked up from the cache and broadcast; a
// cache clear is forwarded to websocket clients.
func EventHandler(ctx context.Context, analyzer *engine.Analyzer, hub *handlers.WebSocketHub, logger *slog.Logger) func(notify.Event) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(e notify.Event) {
		switch e.Type {
		case notify.EventCacheCleared:
			hub.Broadcast(handlers.WSMessage{Type: handlers.MessageCacheCleared})
		case notify.EventRelationsUpdated:
			subject := analyzer.Subject()
			if subject == nil || subject.UUID != e.SubjectUUID {
				return
			}
			go func() {
				if _, err := analyzer.Refresh(ctx, false); err != nil && !engine.IsCanceled(err) {
					logger.Warn("failed to reload relations", "subject", e.SubjectUUID, "error", err)
				}
			}()
		default:
			logger.Debug("ignoring event", "type", e.Type)
		}
	}
}
