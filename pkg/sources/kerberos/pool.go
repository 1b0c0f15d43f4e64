package kerberos

import (
	"context"
	"sync"

	"github.com/realmsync/realmsync/internal/logger"
	"github.com/realmsync/realmsync/pkg/kadmin"
	"github.com/realmsync/realmsync/pkg/models"
)

// ConnectFunc establishes an admin session for a source.
type ConnectFunc func(ctx context.Context, src *models.Source) (kadmin.Client, error)

// ConnectionPool caches one admin session per source. Failed
// connection attempts are never cached; concurrent requests for the
// same source serialize on a per-source latch so only one attempt runs
// at a time, while requests for distinct sources proceed in parallel.
type ConnectionPool struct {
	connect ConnectFunc

	mu      sync.Mutex
	clients map[string]kadmin.Client
	latches map[string]*sync.Mutex
}

// NewConnectionPool returns a pool backed by the given connect
// function.
func NewConnectionPool(connect ConnectFunc) *ConnectionPool {
	return &ConnectionPool{
		connect: connect,
		clients: make(map[string]kadmin.Client),
		latches: make(map[string]*sync.Mutex),
	}
}

// Get returns the cached session for the source, establishing one if
// none exists. The same client is handed out until Close or CloseAll
// evicts it.
func (p *ConnectionPool) Get(ctx context.Context, src *models.Source) (kadmin.Client, error) {
	latch := p.latch(src.ID)
	latch.Lock()
	defer latch.Unlock()

	p.mu.Lock()
	cl, ok := p.clients[src.ID]
	p.mu.Unlock()
	if ok {
		return cl, nil
	}

	cl, err := p.connect(ctx, src)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.clients[src.ID] = cl
	p.mu.Unlock()

	logger.Debug("cached admin session", "source", src.Slug)
	return cl, nil
}

// Close evicts and closes the cached session for a source, if any.
func (p *ConnectionPool) Close(sourceID string) error {
	p.mu.Lock()
	cl, ok := p.clients[sourceID]
	delete(p.clients, sourceID)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return cl.Close()
}

// CloseAll evicts and closes every cached session. The first close
// error is returned; all sessions are closed regardless.
func (p *ConnectionPool) CloseAll() error {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[string]kadmin.Client)
	p.mu.Unlock()

	var first error
	for _, cl := range clients {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *ConnectionPool) latch(sourceID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	latch, ok := p.latches[sourceID]
	if !ok {
		latch = &sync.Mutex{}
		p.latches[sourceID] = latch
	}
	return latch
}
