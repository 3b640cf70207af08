package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"join-api/domain"
	"join-api/live"
	"join-api/storage"
)

type statusQueue interface {
	Dequeue(ctx context.Context) (*storage.QueuedStatus, error)
	Delete(ctx context.Context, id, receipt string) error
}

type statusWriter interface {
	SetTaskStatus(ctx context.Context, id string, status domain.Status) error
}

type changeNotifier interface {
	Changed(ctx context.Context, collection string)
}

// processor drains the status queue into the backend.
type processor struct {
	queue    statusQueue
	store    statusWriter
	notifier changeNotifier
	logger   *log.Logger
	idle     time.Duration
}

func (p *processor) run(ctx context.Context) {
	p.logger.Info("status processor started")
	for {
		if ctx.Err() != nil {
			return
		}
		handled, err := p.processNext(ctx)
		if err != nil {
			p.logger.WithError(err).Error("receive")
		}
		if handled {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.idle):
		}
	}
}

// processNext handles at most one message. Every dequeued message is
// deleted after a single attempt.
func (p *processor) processNext(ctx context.Context) (bool, error) {
	msg, err := p.queue.Dequeue(ctx)
	if err != nil || msg == nil {
		return false, err
	}
	if msg.TaskID == "" {
		p.logger.WithField("message", msg.MessageID).Warn("dropping malformed status message")
	} else {
		applyStatus(ctx, p.store, p.notifier, p.logger, msg.StatusChange)
	}
	if err := p.queue.Delete(ctx, msg.MessageID, msg.PopReceipt); err != nil {
		p.logger.WithError(err).WithField("message", msg.MessageID).Error("delete status message")
	}
	return true, nil
}

// applyStatus writes ch and announces the task change. When the write fails
// the announcement still goes out so every feed reloads the stored status.
func applyStatus(ctx context.Context, store statusWriter, notifier changeNotifier, logger *log.Logger, ch storage.StatusChange) error {
	err := store.SetTaskStatus(ctx, ch.TaskID, ch.Status)
	if err != nil {
		logger.WithError(err).WithFields(log.Fields{
			"task":   ch.TaskID,
			"status": ch.Status,
		}).Error("status write failed; reverting")
	} else {
		logger.WithFields(log.Fields{
			"task":    ch.TaskID,
			"status":  ch.Status,
			"latency": time.Since(ch.RequestedAt).String(),
		}).Debug("status applied")
	}
	notifier.Changed(ctx, live.CollectionTasks)
	return err
}

// directSink applies status changes in-process when no queue is configured.
type directSink struct {
	store    statusWriter
	notifier changeNotifier
	logger   *log.Logger
}

// PushStatus returns nil after a failed write: the resync already reverted
// the move, so the pool must not announce it a second time.
func (d directSink) PushStatus(ctx context.Context, ch storage.StatusChange) error {
	_ = applyStatus(ctx, d.store, d.notifier, d.logger, ch)
	return nil
}
