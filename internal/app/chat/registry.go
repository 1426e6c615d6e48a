package chat

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"dmchat/internal/pkg/logx"
)

// Handle is the write side of a live session as seen by the Registry.
// Implementations must be comparable pointer types; Release matches handles by identity.
type Handle interface {
	Write(data []byte) error
}

// Registry maps user ids to their single live session handle.
// All map mutations happen under mu; writes to handles happen outside it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]Handle

	// onEvict runs after a failed write removed a session.
	onEvict func(userID int64)

	logger zerolog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]Handle),
		logger:   logx.Component("Registry"),
	}
}

// Register installs h as the session for userID and returns the handle it replaced, if any.
func (r *Registry) Register(userID int64, h Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.sessions[userID]
	r.sessions[userID] = h

	if ok && prev != h {
		r.logger.Info().Int64("user_id", userID).Msg("Session replaced")
		return prev
	}
	return nil
}

// Deregister removes the session for userID. No-op if absent.
func (r *Registry) Deregister(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, userID)
}

// Release removes the session for userID only if it is still h.
// It reports whether an entry was removed.
func (r *Registry) Release(userID int64, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[userID]; ok && cur == h {
		delete(r.sessions, userID)
		return true
	}
	return false
}

// OnEvict sets the callback run for each session removed by a failed Unicast or Broadcast write.
// It must be called before the Registry is shared.
func (r *Registry) OnEvict(fn func(userID int64)) {
	r.onEvict = fn
}

func (r *Registry) evicted(userID int64) {
	if r.onEvict != nil {
		r.onEvict(userID)
	}
}

func (r *Registry) lookup(userID int64) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.sessions[userID]
	return h, ok
}

// Unicast writes payload to the session of userID and reports whether the write succeeded.
// A failed write removes that session.
func (r *Registry) Unicast(userID int64, payload any) bool {
	h, ok := r.lookup(userID)
	if !ok {
		return false
	}

	data, err := encodePayload(payload)
	if err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to encode unicast payload")
		return false
	}

	if err := h.Write(data); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("Unicast write failed, removing session")
		if r.Release(userID, h) {
			r.evicted(userID)
		}
		return false
	}

	return true
}

// Broadcast writes payload to every session except the excluded user ids.
// Writes run concurrently; each failed session is removed without affecting the others,
// and the eviction callback runs once all writes have finished.
// It returns the number of successful writes.
func (r *Registry) Broadcast(payload any, exclude ...int64) int {
	data, err := encodePayload(payload)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode broadcast payload")
		return 0
	}

	r.mu.RLock()
	targets := make(map[int64]Handle, len(r.sessions))
	for id, h := range r.sessions {
		if !slices.Contains(exclude, id) {
			targets[id] = h
		}
	}
	r.mu.RUnlock()

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
		evictMu   sync.Mutex
		evicted   []int64
	)

	for id, h := range targets {
		wg.Add(1)

		go func(id int64, h Handle) {
			defer wg.Done()

			if err := h.Write(data); err != nil {
				r.logger.Warn().Err(err).Int64("user_id", id).Msg("Broadcast write failed, removing session")
				if r.Release(id, h) {
					evictMu.Lock()
					evicted = append(evicted, id)
					evictMu.Unlock()
				}
				return
			}
			delivered.Add(1)
		}(id, h)
	}

	wg.Wait()

	for _, id := range evicted {
		r.evicted(id)
	}

	return int(delivered.Load())
}

// ConnectedIDs returns a sorted snapshot of the registered user ids.
func (r *Registry) ConnectedIDs() []int64 {
	r.mu.RLock()
	ids := lo.Keys(r.sessions)
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// IsConnected reports whether userID has a registered session.
func (r *Registry) IsConnected(userID int64) bool {
	_, ok := r.lookup(userID)
	return ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
