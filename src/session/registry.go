package session

import (
	"context"
	"sync"
	"time"

	"vigila/src/helpers"
	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/models"
	"vigila/src/widget"

	gonanoid "github.com/matoous/go-nanoid"
)

// PushFunc delivers a state change to the owning user's clients.
type PushFunc func(*models.MPushMessage)

type userSession struct {
	view     *widget.WatchlistView
	widgets  map[string]*widget.Widget
	used     map[string]time.Time // last access per widget
	lastUsed time.Time
}

// -----------------------------------------------------------------------------
// Registry owns the per-user watchlist views and the open widgets. Widgets are
// only reachable by the user that opened them.
// -----------------------------------------------------------------------------

type Registry struct {
	store  interfaces.IWatchlistStore
	lookup interfaces.ISymbolLookup
	opts   widget.Options
	push   PushFunc
	logger *logger.Logger

	// IdleTimeout closes widgets nobody touched for that long. Zero disables
	// the sweep.
	IdleTimeout time.Duration

	mu    sync.Mutex
	users map[string]*userSession
	now   func() time.Time
}

// -----------------------------------------------------------------------------

func NewRegistry(store interfaces.IWatchlistStore, lookup interfaces.ISymbolLookup, opts widget.Options, log *logger.Logger) *Registry {
	return &Registry{
		store:  store,
		lookup: lookup,
		opts:   opts,
		logger: log,
		users:  make(map[string]*userSession),
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

// SetPush wires the push channel. Safe to call before serving.
func (r *Registry) SetPush(push PushFunc) {
	r.mu.Lock()
	r.push = push
	r.mu.Unlock()
}

// -----------------------------------------------------------------------------

func (r *Registry) publish(msg *models.MPushMessage) {
	r.mu.Lock()
	push := r.push
	r.mu.Unlock()
	if push == nil {
		return
	}
	msg.Timestamp = time.Now().UnixMilli()
	push(msg)
}

// -----------------------------------------------------------------------------

func (r *Registry) session(userID string) *userSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.users[userID]
	if !ok {
		s = &userSession{widgets: make(map[string]*widget.Widget), used: make(map[string]time.Time)}
		s.view = widget.NewWatchlistView(r.store, userID, func() {
			state := s.view.State()
			r.publish(&models.MPushMessage{Type: models.PushWatchlist, UserID: userID, Watchlist: &state})
		})
		r.users[userID] = s
	}
	s.lastUsed = r.now()
	return s
}

// -----------------------------------------------------------------------------

// View returns the user's watchlist view, loading it on first use.
func (r *Registry) View(ctx context.Context, userID string) (*widget.WatchlistView, error) {
	if userID == "" {
		return nil, helpers.NewNotAuthenticatedError()
	}
	view := r.session(userID).view
	if err := view.EnsureLoaded(ctx); err != nil {
		return view, err
	}
	return view, nil
}

// -----------------------------------------------------------------------------

// OpenWidget creates a widget seeded from the user's current view.
func (r *Registry) OpenWidget(ctx context.Context, userID string) (*widget.Widget, error) {
	if userID == "" {
		return nil, helpers.NewNotAuthenticatedError()
	}
	view, err := r.View(ctx, userID)
	if err != nil {
		return nil, err
	}

	id, err := gonanoid.Nanoid()
	if err != nil {
		return nil, err
	}

	w := widget.Open(id, userID, view, r.lookup, r.store, r.opts,
		func(state models.MWidgetState) {
			r.publish(&models.MPushMessage{Type: models.PushWidget, UserID: userID, Widget: &state})
		},
		func(batch []models.MSymbolRecord) {
			r.logger.Info("User %s committed %d symbols", userID, len(batch))
			// the request context may already be done once the commit returns
			refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := view.Refresh(refreshCtx); err != nil {
				r.logger.Warning("Refresh after commit failed for %s: %v", userID, err)
			}
		},
	)

	s := r.session(userID)
	r.mu.Lock()
	s.widgets[id] = w
	s.used[id] = r.now()
	r.mu.Unlock()

	r.logger.Debug("Opened widget %s for %s", id, userID)
	return w, nil
}

// -----------------------------------------------------------------------------

// Widget looks up an open widget owned by userID.
func (r *Registry) Widget(userID, id string) (*widget.Widget, error) {
	if userID == "" {
		return nil, helpers.NewNotAuthenticatedError()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.users[userID]
	if !ok {
		return nil, helpers.ErrWidgetNotFound
	}
	w, ok := s.widgets[id]
	if !ok {
		return nil, helpers.ErrWidgetNotFound
	}
	s.used[id] = r.now()
	s.lastUsed = s.used[id]
	return w, nil
}

// -----------------------------------------------------------------------------

// CloseWidget closes and forgets a widget.
func (r *Registry) CloseWidget(userID, id string) error {
	w, err := r.Widget(userID, id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if s, ok := r.users[userID]; ok {
		delete(s.widgets, id)
		delete(s.used, id)
	}
	r.mu.Unlock()

	w.Close()
	return nil
}

// -----------------------------------------------------------------------------

// Watchlist returns the persisted records through the user's view.
func (r *Registry) Watchlist(ctx context.Context, userID string) ([]models.MSymbolRecord, error) {
	view, err := r.View(ctx, userID)
	if err != nil {
		return nil, err
	}
	return view.Snapshot(), nil
}

// -----------------------------------------------------------------------------

// RecordContact stores the e-mail used for alerts.
func (r *Registry) RecordContact(ctx context.Context, userID, email string) error {
	if email == "" {
		return nil
	}
	return r.store.SetContact(ctx, userID, email)
}

// -----------------------------------------------------------------------------

// CloseAll closes every open widget. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var open []*widget.Widget
	for _, s := range r.users {
		for id, w := range s.widgets {
			open = append(open, w)
			delete(s.widgets, id)
			delete(s.used, id)
		}
	}
	r.mu.Unlock()

	for _, w := range open {
		w.Close()
	}
	r.logger.Info("Closed %d open widgets", len(open))
}

// -----------------------------------------------------------------------------

// OpenWidgets returns the number of widgets userID still has open.
func (r *Registry) OpenWidgets(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.users[userID]; ok {
		return len(s.widgets)
	}
	return 0
}

// -----------------------------------------------------------------------------

// ReleaseUser closes every widget of userID and forgets the session unless a
// removal is still in flight. Called once the user's last client is gone.
func (r *Registry) ReleaseUser(userID string) int {
	r.mu.Lock()
	s, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return 0
	}
	open := make([]*widget.Widget, 0, len(s.widgets))
	for id, w := range s.widgets {
		open = append(open, w)
		delete(s.widgets, id)
		delete(s.used, id)
	}
	if !s.view.Busy() {
		delete(r.users, userID)
	}
	r.mu.Unlock()

	for _, w := range open {
		w.Close()
	}
	return len(open)
}

// -----------------------------------------------------------------------------

// Sweep closes widgets idle for IdleTimeout and drops sessions left without
// widgets for as long. It returns the number of widgets closed.
func (r *Registry) Sweep() int {
	if r.IdleTimeout <= 0 {
		return 0
	}
	r.mu.Lock()
	cutoff := r.now().Add(-r.IdleTimeout)
	var idle []*widget.Widget
	for userID, s := range r.users {
		for id, w := range s.widgets {
			if s.used[id].After(cutoff) {
				continue
			}
			idle = append(idle, w)
			delete(s.widgets, id)
			delete(s.used, id)
		}
		if len(s.widgets) == 0 && !s.lastUsed.After(cutoff) && !s.view.Busy() {
			delete(r.users, userID)
		}
	}
	r.mu.Unlock()

	for _, w := range idle {
		w.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("Closed %d idle widgets", len(idle))
	}
	return len(idle)
}

// -----------------------------------------------------------------------------

// Run sweeps idle widgets until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	if r.IdleTimeout <= 0 {
		return
	}
	interval := r.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
