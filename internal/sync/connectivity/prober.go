package connectivity

import (
	"bookingsync/pkg/logger"
	"context"
	"sync"
	"time"
)

// Pinger checks the remote API health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober polls a Pinger and feeds the result into a Signal.
type Prober struct {
	pinger   Pinger
	signal   *Signal
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewProber(pinger Pinger, signal *Signal, interval, timeout time.Duration, log *logger.Logger) *Prober {
	return &Prober{
		pinger:   pinger,
		signal:   signal,
		interval: interval,
		timeout:  timeout,
		log:      log.WithComponent("connectivity_prober"),
	}
}

// Probe pings once and reports the result to the signal. A state pinned by
// the host is left alone, but the measured state is still returned.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(ctx)
	if err != nil {
		p.log.Debug("Remote health probe failed", "error", err)
	}
	online := err == nil
	p.signal.Observe(online)
	return online
}

// Start probes immediately and then every interval until Stop or ctx ends.
func (p *Prober) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.Probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.Probe(ctx)
			}
		}
	}()

	p.log.Info("Connectivity prober started", "interval", p.interval)
}

func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("Connectivity prober stopped")
}
