package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"join-api/live"
	"join-api/storage"
)

const defaultStatusTimeout = 10 * time.Second

// StatusSyncConfig sizes the status write pool.
type StatusSyncConfig struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

// StatusSync persists board status changes off the request path. A failed
// write is logged and the task feed is told to resync, which reverts the
// optimistic move on every client.
type StatusSync struct {
	cfg      StatusSyncConfig
	sink     StatusSink
	notifier Notifier
	logger   *log.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan storage.StatusChange
	wg     sync.WaitGroup
}

// NewStatusSync starts cfg.Workers workers draining into sink.
func NewStatusSync(sink StatusSink, notifier Notifier, logger *log.Logger, cfg StatusSyncConfig) *StatusSync {
	if sink == nil {
		panic("api.NewStatusSync: sink is required")
	}
	if logger == nil {
		panic("Logger is not initialized")
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultStatusTimeout
	}
	p := &StatusSync{
		cfg:      cfg,
		sink:     sink,
		notifier: notifier,
		logger:   logger,
		jobs:     make(chan storage.StatusChange, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Infof("status sync started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		cfg.Workers, cfg.Buffer, cfg.Timeout, cfg.HandoffTimeout)
	return p
}

// Submit hands ch to a worker, or writes it inline when the pool stays
// saturated past the handoff timeout.
func (p *StatusSync) Submit(ch storage.StatusChange) {
	if p.tryEnqueue(ch) {
		return
	}
	p.logger.WithField("task", ch.TaskID).Warn("status buffer saturated; processing inline")
	p.push(0, ch)
}

// Close stops accepting work and waits for queued changes to be written.
func (p *StatusSync) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *StatusSync) worker(id int) {
	defer p.wg.Done()
	for ch := range p.jobs {
		p.push(id, ch)
	}
}

func (p *StatusSync) push(worker int, ch storage.StatusChange) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	err := p.sink.PushStatus(ctx, ch)
	cancel()
	if err == nil {
		return
	}
	p.logger.WithError(err).WithFields(log.Fields{
		"task":   ch.TaskID,
		"status": ch.Status,
		"worker": worker,
	}).Error("status write failed; resyncing board")
	if p.notifier != nil {
		p.notifier.Changed(context.Background(), live.CollectionTasks)
	}
}

func (p *StatusSync) tryEnqueue(ch storage.StatusChange) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- ch:
		return true
	default:
	}

	if p.cfg.HandoffTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(p.cfg.HandoffTimeout)
	defer timer.Stop()

	select {
	case p.jobs <- ch:
		return true
	case <-timer.C:
		return false
	}
}
