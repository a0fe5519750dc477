package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/crewdeck-hr/crewdeck-hr/internal/platform/db"
	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
)

// Dialer opens a Store for a tenant DSN. The default dialer is pgx
// backed; tests inject fakes.
type Dialer func(ctx context.Context, dsn string) (Store, error)

// Handle is one live tenant connection plus its collection accessors.
type Handle struct {
	tenantID  string
	database  string
	host      string
	store     Store
	createdAt time.Time

	mu          sync.Mutex
	state       ConnState
	collections map[string]*Collection
}

// TenantID returns the owning tenant id.
func (h *Handle) TenantID() string { return h.tenantID }

// Store exposes the underlying storage backend.
func (h *Handle) Store() Store { return h.store }

// State returns the current connection state.
func (h *Handle) State() ConnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) setState(s ConnState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		TenantID:  h.tenantID,
		State:     h.state,
		Database:  h.database,
		Host:      h.host,
		CreatedAt: h.createdAt,
	}
}

// Registry caches one storage handle per tenant id. Creation is
// serialized per key so concurrent first callers share a single
// handle instead of racing one of them into an orphan.
type Registry struct {
	baseDSN string
	logger  *slog.Logger
	dial    Dialer

	mu      sync.RWMutex
	handles map[string]*Handle
	group   singleflight.Group
}

// Option customizes a Registry.
type Option func(*Registry)

// WithDialer overrides how tenant stores are opened.
func WithDialer(dial Dialer) Option {
	return func(r *Registry) { r.dial = dial }
}

// NewRegistry constructs a tenant connection registry over a base DSN.
func NewRegistry(baseDSN string, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		baseDSN: baseDSN,
		logger:  logger,
		handles: make(map[string]*Handle),
		dial: func(ctx context.Context, dsn string) (Store, error) {
			return db.New(ctx, dsn)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetConnection returns the cached handle for the tenant while it is
// healthy, creating one otherwise. Creation failures are wrapped in
// shared.ErrConnection and are not retried here.
func (r *Registry) GetConnection(ctx context.Context, tenantID string) (*Handle, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: empty tenant id", shared.ErrConnection)
	}

	r.mu.RLock()
	h, ok := r.handles[tenantID]
	r.mu.RUnlock()
	if ok && h.State() == StateConnected {
		return h, nil
	}

	v, err, _ := r.group.Do(tenantID, func() (any, error) {
		// A racing creator may have finished while we queued.
		r.mu.RLock()
		existing, ok := r.handles[tenantID]
		r.mu.RUnlock()
		if ok && existing.State() == StateConnected {
			return existing, nil
		}
		return r.connect(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (r *Registry) connect(ctx context.Context, tenantID string) (*Handle, error) {
	dsn, err := db.TenantDSN(r.baseDSN, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %s: %v", shared.ErrConnection, tenantID, err)
	}

	h := &Handle{
		tenantID:    tenantID,
		database:    db.TenantDatabase(tenantID),
		host:        db.Host(dsn),
		state:       StateConnecting,
		createdAt:   time.Now(),
		collections: make(map[string]*Collection),
	}

	store, err := r.dial(ctx, dsn)
	if err != nil {
		r.logger.Error("tenant connection failed",
			slog.String("tenant", tenantID),
			slog.String("database", h.database),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: tenant %s: %v", shared.ErrConnection, tenantID, err)
	}
	h.store = store
	h.setState(StateConnected)

	r.mu.Lock()
	r.handles[tenantID] = h
	r.mu.Unlock()

	r.logger.Info("tenant connection created",
		slog.String("tenant", tenantID),
		slog.String("database", h.database))
	return h, nil
}

// Evict removes a tenant entry so the next GetConnection re-creates
// it. The failed store is closed in the background.
func (r *Registry) Evict(tenantID string, state ConnState) {
	r.mu.Lock()
	h, ok := r.handles[tenantID]
	if ok {
		delete(r.handles, tenantID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	h.setState(state)
	go h.store.Close()
	r.logger.Warn("tenant connection evicted",
		slog.String("tenant", tenantID),
		slog.String("state", string(state)))
}

// CloseConnection tears down one tenant handle.
func (r *Registry) CloseConnection(tenantID string) {
	r.mu.Lock()
	h, ok := r.handles[tenantID]
	if ok {
		delete(r.handles, tenantID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	h.setState(StateDisconnected)
	h.store.Close()
	r.logger.Info("tenant connection closed", slog.String("tenant", tenantID))
}

// CloseAll closes every cached handle concurrently and clears the
// cache. Called on process termination.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			h.setState(StateDisconnected)
			h.store.Close()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.logger.Info("all tenant connections closed", slog.Int("count", len(handles)))
	return nil
}

// ConnectionStatus returns a snapshot of every cached entry without
// touching the network.
func (r *Registry) ConnectionStatus() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]Status, 0, len(r.handles))
	for _, h := range r.handles {
		statuses = append(statuses, h.status())
	}
	return statuses
}

// HealthCheck pings every cached handle and reports the observed
// state. It never mutates the cache; use Sweep for eviction.
func (r *Registry) HealthCheck(ctx context.Context) []Status {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	statuses := make([]Status, 0, len(handles))
	for _, h := range handles {
		st := h.status()
		if err := h.store.Ping(ctx); err != nil {
			st.State = StateError
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// Sweep pings every cached handle and evicts the ones that fail, so
// subsequent callers re-create them. Returns the eviction count.
func (r *Registry) Sweep(ctx context.Context) int {
	evicted := 0
	for _, st := range r.HealthCheck(ctx) {
		if st.State == StateError {
			r.Evict(st.TenantID, StateError)
			evicted++
		}
	}
	return evicted
}
