package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	CollectionTasks    = "tasks"
	CollectionContacts = "contacts"
)

// DefaultChannel is the Redis channel change notifications travel on.
const DefaultChannel = "join:changes"

// Refresher reloads one mirrored collection.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Change is the payload published after a collection was written.
type Change struct {
	Collection string `json:"collection"`
}

// Notifier tells every API instance that a collection changed. Without a
// Redis client the local feed is refreshed directly.
type Notifier struct {
	rc      *redis.Client
	channel string
	feeds   map[string]Refresher
	logger  *log.Logger
}

func NewNotifier(rc *redis.Client, channel string, feeds map[string]Refresher, logger *log.Logger) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{rc: rc, channel: channel, feeds: feeds, logger: logger}
}

// Changed announces a write to collection. Failures are logged only.
func (n *Notifier) Changed(ctx context.Context, collection string) {
	if n.rc != nil {
		payload, _ := json.Marshal(Change{Collection: collection})
		err := n.rc.Publish(ctx, n.channel, payload).Err()
		if err == nil {
			return
		}
		n.logger.WithError(err).WithField("channel", n.channel).Error("Unable to publish change notification")
	}
	refresh(ctx, n.logger, n.feeds, collection)
}

func refresh(ctx context.Context, logger *log.Logger, feeds map[string]Refresher, collection string) {
	feed, ok := feeds[collection]
	if !ok {
		logger.WithField("collection", collection).Warn("change for unknown collection")
		return
	}
	if err := feed.Refresh(ctx); err != nil {
		logger.WithError(err).WithField("collection", collection).Error("refresh failed")
	}
}

// Listen refreshes the named feed on every change notification. It
// resubscribes one second after the pub/sub channel closes and returns when
// ctx is done.
func Listen(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, feeds map[string]Refresher) {
	if channel == "" {
		channel = DefaultChannel
	}
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				var ev Change
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.WithError(err).Error("unable to parse change notification")
					continue
				}
				refresh(ctx, logger, feeds, ev.Collection)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
