package referral

import (
	"context"
	"sync"
	"time"
)

const pollInterval = 30 * time.Second

// Poller refreshes the referral snapshot for the currently connected wallet.
// It stops as soon as its context is cancelled (wallet disconnect) and drops
// any snapshot whose wallet no longer matches the active one, so a slow fetch
// for a previous wallet can never overwrite the current wallet's view.
type Poller struct {
	service  *Service
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPoller(service *Service) *Poller {
	return &Poller{service: service, interval: pollInterval}
}

// Start begins polling. wallet reports the active wallet ("" when
// disconnected), apply receives each fresh snapshot. An immediate first fetch
// runs before the ticker kicks in. Calling Start again stops the previous run.
func (p *Poller) Start(ctx context.Context, wallet func() string, apply func(*Snapshot)) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	go p.run(ctx, wallet, apply)
}

func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) run(ctx context.Context, wallet func() string, apply func(*Snapshot)) {
	p.tick(ctx, wallet, apply)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			p.tick(ctx, wallet, apply)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) tick(ctx context.Context, wallet func() string, apply func(*Snapshot)) {
	addr := wallet()
	if addr == "" {
		return
	}
	snap := p.service.Fetch(ctx, addr)
	if ctx.Err() != nil {
		return
	}
	// The wallet may have switched while the fetch was in flight.
	if wallet() != addr {
		return
	}
	apply(snap)
}
