package training

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/formcoach/internal/models"
)

var ErrNotFound = errors.New("training session not found")

// Manager owns the controllers of all visitors, keyed by session ID.
type Manager struct {
	api  API
	opts Options
	ttl  time.Duration
	log  *slog.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager creates a Manager. Idle controllers older than ttl are closed
// by Sweep; ttl <= 0 disables expiry.
func NewManager(api API, opts Options, ttl time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		api:         api,
		opts:        opts.withDefaults(),
		ttl:         ttl,
		log:         log,
		controllers: make(map[string]*Controller),
	}
}

// Open mounts a new training interface and returns its controller.
func (m *Manager) Open(exercise models.ExerciseType, iface models.InterfaceMode) *Controller {
	id := uuid.NewString()
	c := NewController(id, exercise, iface, m.api, m.opts, m.log)

	m.mu.Lock()
	m.controllers[id] = c
	m.mu.Unlock()

	m.log.Info("training interface opened", "session", id, "exercise", exercise, "interface", iface)
	return c
}

// Get returns the controller for id and marks it active.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	c, ok := m.controllers[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	c.Touch()
	return c, nil
}

// Close unmounts the controller for id.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.controllers[id]
	delete(m.controllers, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return c.Close(ctx)
}

// Len returns the number of open controllers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}

// Sweep closes controllers idle since before now-ttl that have no event
// subscribers. It returns the number closed.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-m.ttl)

	var expired []*Controller
	m.mu.Lock()
	for id, c := range m.controllers {
		if c.Subscribers() > 0 || !c.idleSince().Before(cutoff) {
			continue
		}
		expired = append(expired, c)
		delete(m.controllers, id)
	}
	m.mu.Unlock()

	for _, c := range expired {
		if err := c.Close(ctx); err != nil {
			m.log.Error("failed to close idle session", "session", c.ID(), "error", err)
		}
	}
	if len(expired) > 0 {
		m.log.Info("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// CloseAll closes every controller. Used on shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		all = append(all, c)
	}
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Close(ctx); err != nil {
				m.log.Error("failed to close session", "session", c.ID(), "error", err)
			}
		}()
	}
	wg.Wait()
}
