package usecase

import (
	"context"
	"crypto/rand"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"food-router/internal/domain"
)

// BusyPolicy decides what happens when an utterance arrives for a session
// that is still handling a previous one.
type BusyPolicy string

const (
	BusyQueue  BusyPolicy = "queue"
	BusyReject BusyPolicy = "reject"
)

// Session is one conversation: its turn history and the context derived
// from it. All methods are safe for concurrent use.
type Session struct {
	mu          sync.RWMutex
	ID          string // ULID
	Key         string // caller-supplied session id
	CreatedAt   time.Time
	turns       []domain.Turn
	state       domain.SessionContext
	lastTouched time.Time
	maxTurns    int
	now         func() time.Time
}

func newSession(key string, maxTurns int, now func() time.Time) *Session {
	t := now()
	return &Session{
		ID:          newULID(t),
		Key:         key,
		CreatedAt:   t,
		lastTouched: t,
		maxTurns:    maxTurns,
		now:         now,
	}
}

func newULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// Append records a turn and folds the answer's successful outcomes into
// the session context. Degraded answers are recorded too.
func (s *Session) Append(utt domain.Utterance, answer domain.CompositeAnswer) domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	turn := domain.Turn{
		ID:        newULID(at),
		Utterance: utt,
		Answer:    answer.Text,
		Degraded:  answer.FullyDegraded,
		At:        at,
	}
	s.turns = append(s.turns, turn)
	if s.maxTurns > 0 && len(s.turns) > s.maxTurns {
		s.turns = append([]domain.Turn(nil), s.turns[len(s.turns)-s.maxTurns:]...)
	}
	for _, o := range answer.Outcomes {
		applyOutcome(&s.state, o)
	}
	s.lastTouched = at
	return turn
}

func applyOutcome(c *domain.SessionContext, o domain.TaskOutcome) {
	if !o.Result.OK() {
		return
	}
	switch o.Task.Kind() {
	case domain.KindMenu:
		var p domain.MenuPayload
		if o.Result.Decode(&p) != nil {
			return
		}
		switchRestaurant(c, p.RestaurantName, p.Address)
		c.MenuItems = c.MenuItems[:0]
		for _, it := range p.Items {
			c.MenuItems = append(c.MenuItems, it.Name)
		}
	case domain.KindPrepTime:
		var p domain.PrepTimePayload
		if o.Result.Decode(&p) != nil {
			return
		}
		switchRestaurant(c, p.RestaurantName, p.Address)
		c.ActiveItems = c.ActiveItems[:0]
		for _, it := range p.Items {
			c.ActiveItems = append(c.ActiveItems, it.Name)
		}
	case domain.KindETA:
		var p domain.EtaPayload
		if o.Result.Decode(&p) != nil {
			return
		}
		if p.Destination != "" {
			c.DeliveryAddress = p.Destination
		}
		c.LastEtaMinutes = p.EtaMinutes
	}
}

func switchRestaurant(c *domain.SessionContext, name, address string) {
	if name == "" {
		return
	}
	if !strings.EqualFold(c.ActiveRestaurant, name) {
		c.MenuItems = nil
		c.ActiveItems = nil
	}
	c.ActiveRestaurant = name
	if address != "" {
		c.RestaurantAddress = address
	}
}

// Context returns a snapshot of the derived conversation context.
func (s *Session) Context() domain.SessionContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// History returns a copy of the recorded turns, oldest first.
func (s *Session) History() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Touch marks the session as active now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastTouched = s.now()
	s.mu.Unlock()
}

// LastTouched returns when the session was last active.
func (s *Session) LastTouched() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTouched
}

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	MaxTurns int
	Policy   BusyPolicy
	Bus      domain.EventBus // optional
	Logger   *slog.Logger
	Now      func() time.Time // defaults to time.Now
}

// SessionStore owns every live Session, creating them lazily and evicting
// idle ones. Calls for the same key are serialized through the locker.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	locker   *SessionLocker
	opts     SessionStoreOptions
}

// NewSessionStore creates an empty store.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy == "" {
		opts.Policy = BusyQueue
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		locker:   NewSessionLocker(),
		opts:     opts,
	}
}

// Acquire locks key, creating its session if needed, and touches it.
// Under BusyQueue it waits for the key (bounded by ctx); under BusyReject
// it fails with domain.ErrSessionBusy. The release func must be called.
func (st *SessionStore) Acquire(ctx context.Context, key string) (*Session, func(), error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil, domain.NewDomainError("SessionStore.Acquire", domain.ErrInvalidInput, "empty session id")
	}

	var (
		unlock func()
		err    error
	)
	if st.opts.Policy == BusyReject {
		unlock, err = st.locker.TryLock(key)
	} else {
		unlock, err = st.locker.Lock(ctx, key)
	}
	if err != nil {
		return nil, nil, domain.WrapOp("SessionStore.Acquire", err)
	}

	s, created := st.getOrCreate(key)
	s.Touch()
	if created {
		st.opts.Logger.Debug("session created", "session_key", key, "session_id", s.ID)
		st.emit(ctx, domain.EventSessionCreated, key, map[string]string{"session_id": s.ID})
	}
	return s, unlock, nil
}

func (st *SessionStore) getOrCreate(key string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[key]; ok {
		return s, false
	}
	s := newSession(key, st.opts.MaxTurns, st.opts.Now)
	st.sessions[key] = s
	return s, true
}

// Get returns an existing session without locking it.
func (st *SessionStore) Get(key string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[key]
	if !ok {
		return nil, domain.NewDomainError("SessionStore.Get", domain.ErrSessionNotFound, key)
	}
	return s, nil
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Active returns the number of sessions with a request in flight or queued.
func (st *SessionStore) Active() int {
	return st.locker.ActiveCount()
}

// ReapIdle evicts sessions untouched for longer than maxIdle and returns
// how many were removed. Sessions with an in-flight request are kept.
func (st *SessionStore) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := st.opts.Now().Add(-maxIdle)

	st.mu.Lock()
	var evicted []string
	for key, s := range st.sessions {
		if s.LastTouched().After(cutoff) || st.locker.Held(key) {
			continue
		}
		delete(st.sessions, key)
		evicted = append(evicted, key)
	}
	st.mu.Unlock()

	for _, key := range evicted {
		st.emit(ctx, domain.EventSessionEvicted, key, nil)
	}
	if len(evicted) > 0 {
		st.opts.Logger.Info("idle sessions evicted", "count", len(evicted), "max_idle", maxIdle)
	}
	return len(evicted)
}

func (st *SessionStore) emit(ctx context.Context, t domain.EventType, key string, payload any) {
	if st.opts.Bus == nil {
		return
	}
	st.opts.Bus.Publish(ctx, domain.NewEvent(t, key, payload))
}
