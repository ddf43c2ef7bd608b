package client

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// DefaultPollInterval is how often the mirror is refreshed.
const DefaultPollInterval = 5 * time.Second

// PollerConfig holds poller configuration.
type PollerConfig struct {
	// Interval between refreshes (default: DefaultPollInterval)
	Interval time.Duration

	// OnRefresh is called with a copy of the document after every
	// successful refresh.
	OnRefresh func(doc *schema.Document, version string)

	// Logger for poller activity (default: stderr logger)
	Logger *log.Logger
}

// Poller refreshes a mirror on a fixed interval until stopped. A failed
// fetch is not retried; the next tick tries again.
type Poller struct {
	mirror *Mirror
	config *PollerConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPoller creates a poller for m. Use Start() to begin polling.
func NewPoller(m *Mirror, config *PollerConfig) *Poller {
	if config == nil {
		config = &PollerConfig{}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[poller] ", log.LstdFlags)
	}
	return &Poller{mirror: m, config: config}
}

// Start begins polling in the background until ctx is cancelled or Stop
// is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.loop(ctx)
	return nil
}

// Stop cancels polling and waits for an in-flight refresh to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}

// IsRunning returns true if the poller is currently running.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
			err := p.mirror.Refresh(tickCtx)
			cancel()
			if err != nil {
				continue
			}
			if p.config.OnRefresh != nil {
				p.config.OnRefresh(p.mirror.Snapshot(), p.mirror.Version())
			}
		}
	}
}
