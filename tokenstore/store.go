package tokenstore

import (
	"sync"

	"github.com/rs/zerolog"
)

const (
	probeKey   = "__authsession_probe__"
	probeValue = "ok"
)

// Store is the fallback-aware persistence layer used by the session client.
//
// On construction the store probes whether the backend is writable with a
// write-read-delete round trip. If the probe fails, every subsequent call
// operates against an in-process map instead, and the fallback is permanent
// for the lifetime of this instance; there is no re-probe. Data in the
// fallback does not survive a process restart, which is an accepted
// degradation.
//
// Errors raised by the backend on individual calls never propagate: a failed
// read is a miss, a failed write or delete is logged and ignored.
//
// A nil *Store is valid and models a context with no storage at all: Get
// returns "", Set and Remove are no-ops.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	mem      map[string]string
	degraded bool
	log      zerolog.Logger
}

// New probes the backend once and returns a store bound to it, or to the
// in-memory fallback when the probe fails. A nil backend degrades
// immediately.
func New(backend Backend, log zerolog.Logger) *Store {
	s := &Store{
		backend: backend,
		mem:     make(map[string]string),
		log:     log,
	}
	if backend == nil || !probe(backend) {
		s.degraded = true
		s.log.Warn().Msg("token store: durable storage unavailable, using in-memory fallback")
	}
	return s
}

func probe(b Backend) bool {
	defer func() { recover() }()
	if err := b.Write(probeKey, probeValue); err != nil {
		return false
	}
	value, err := b.Read(probeKey)
	if err != nil || value != probeValue {
		return false
	}
	return b.Delete(probeKey) == nil
}

// Get returns the stored value for key, or "" when the key is absent or the
// backend fails.
func (s *Store) Get(key string) string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return s.mem[key]
	}
	value, err := s.backend.Read(key)
	if err == ErrNotFound {
		return ""
	}
	if err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("token store: read failed, treating as miss")
		return ""
	}
	return value
}

// Set stores value under key, best effort.
func (s *Store) Set(key, value string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		s.mem[key] = value
		return
	}
	if err := s.backend.Write(key, value); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("token store: write failed, ignored")
	}
}

// Remove deletes key, best effort.
func (s *Store) Remove(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		delete(s.mem, key)
		return
	}
	if err := s.backend.Delete(key); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("token store: delete failed, ignored")
	}
}

// Degraded reports whether the store is running on the in-memory fallback.
// Exposed for logging and tests only; callers must not branch on it.
func (s *Store) Degraded() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}
