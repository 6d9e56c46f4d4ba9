package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager runs one Collector per configured instance. Collectors added after
// Start begin refreshing immediately.
type Manager struct {
	mu         sync.RWMutex
	collectors map[string]*managed
	ctx        context.Context
	wg         sync.WaitGroup
}

type managed struct {
	collector *Collector
	cancel    context.CancelFunc
}

func NewManager() *Manager {
	return &Manager{collectors: make(map[string]*managed)}
}

// Add registers c under its entry ID.
func (m *Manager) Add(c *Collector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := c.Entry().ID
	if _, exists := m.collectors[id]; exists {
		return fmt.Errorf("instance %s already registered", id)
	}
	mc := &managed{collector: c}
	m.collectors[id] = mc
	if m.ctx != nil {
		m.launch(mc)
	}
	return nil
}

// Remove stops and forgets the collector for id.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	mc, ok := m.collectors[id]
	if !ok {
		return false
	}
	if mc.cancel != nil {
		mc.cancel()
	}
	delete(m.collectors, id)
	return true
}

func (m *Manager) Get(id string) (*Collector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.collectors[id]
	if !ok {
		return nil, false
	}
	return mc.collector, true
}

// List returns the collectors ordered by identifier, then entry ID.
func (m *Manager) List() []*Collector {
	m.mu.RLock()
	out := make([]*Collector, 0, len(m.collectors))
	for _, mc := range m.collectors {
		out = append(out, mc.collector)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Entry(), out[j].Entry()
		if a.Identifier != b.Identifier {
			return a.Identifier < b.Identifier
		}
		return a.ID < b.ID
	})
	return out
}

// Start runs every registered collector until ctx is done, then waits for
// in-flight cycles to finish.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.ctx = ctx
	for _, mc := range m.collectors {
		m.launch(mc)
	}
	count := len(m.collectors)
	m.mu.Unlock()

	log.Info().Int("instances", count).Msg("Collectors started")

	<-ctx.Done()
	m.wg.Wait()
	return nil
}

// launch starts mc under the manager context. Callers hold m.mu.
func (m *Manager) launch(mc *managed) {
	ctx, cancel := context.WithCancel(m.ctx)
	mc.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := mc.collector.Start(ctx); err != nil {
			log.Error().
				Err(err).
				Str("identifier", mc.collector.Entry().Identifier).
				Msg("Collector exited with error")
		}
	}()
}
