package app

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"randomcoffee/internal/logging"
)

// UpdateFunc processes one update.
type UpdateFunc func(ctx context.Context, up tgbotapi.Update)

// ShardFunc names the sender of an update. Updates of one sender always land on one shard,
// so they are processed in arrival order.
type ShardFunc func(up tgbotapi.Update) int64

// WorkerPool runs one goroutine per shard.
type WorkerPool struct {
	shards []chan tgbotapi.Update
	handle UpdateFunc
	key    ShardFunc
	log    logging.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewWorkerPool(workers, buffer int, key ShardFunc, handle UpdateFunc, log logging.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 16
	}
	p := &WorkerPool{handle: handle, key: key, log: log}
	for i := 0; i < workers; i++ {
		p.shards = append(p.shards, make(chan tgbotapi.Update, buffer))
	}
	return p
}

func (p *WorkerPool) Start(ctx context.Context) {
	p.wg.Add(len(p.shards))
	for i, ch := range p.shards {
		go p.worker(ctx, i, ch)
	}
	p.log.Info(ctx, "worker pool started", "workers", len(p.shards))
}

func (p *WorkerPool) worker(ctx context.Context, id int, ch <-chan tgbotapi.Update) {
	defer p.wg.Done()
	for up := range ch {
		p.run(ctx, id, up)
	}
}

func (p *WorkerPool) run(ctx context.Context, id int, up tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error(ctx, "worker recovered from panic", "worker", id, "update_id", up.UpdateID, "panic", fmt.Sprint(r))
		}
	}()
	p.handle(ctx, up)
}

// Submit queues the update on its sender's shard. It blocks while the shard is full and reports
// false when ctx ends first or the pool is stopped. Updates without a sender are dropped.
func (p *WorkerPool) Submit(ctx context.Context, up tgbotapi.Update) bool {
	return p.enqueue(ctx, up, true)
}

// TrySubmit is Submit without waiting: a full shard reports false at once.
func (p *WorkerPool) TrySubmit(ctx context.Context, up tgbotapi.Update) bool {
	return p.enqueue(ctx, up, false)
}

func (p *WorkerPool) enqueue(ctx context.Context, up tgbotapi.Update, wait bool) bool {
	sender := p.key(up)
	if sender == 0 {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	ch := p.shards[p.shardOf(sender)]
	if !wait {
		select {
		case ch <- up:
			return true
		default:
			return false
		}
	}
	select {
	case ch <- up:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *WorkerPool) shardOf(sender int64) int {
	n := int64(len(p.shards))
	s := sender % n
	if s < 0 {
		s += n
	}
	return int(s)
}

// Stop lets the queued updates finish and waits for the workers.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, ch := range p.shards {
			close(ch)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}
