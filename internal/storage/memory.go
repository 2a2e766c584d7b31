package storage

import (
	"sort"
	"sync"

	"chorddht/internal/domain"
	"chorddht/internal/logger"
)

// Storage is a concurrency-safe in-memory map of the resources a node
// has accepted, keyed by identifier. There is no replication or
// persistence: a crash loses everything the process held.
type Storage struct {
	lgr  logger.Logger
	mu   sync.RWMutex
	data map[string]domain.Resource
}

// New creates an empty in-memory store.
func New(lgr logger.Logger) *Storage {
	return &Storage{
		lgr:  lgr,
		data: make(map[string]domain.Resource),
	}
}

// Put inserts the resource under its key, overwriting any previous value.
// At-most-once semantics are not guaranteed under retries.
func (s *Storage) Put(res domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := res.Key.String()
	if _, replacing := s.data[key]; replacing {
		s.lgr.Debug("resource overwritten", logger.FResource("resource", res))
	} else {
		s.lgr.Debug("resource stored", logger.FResource("resource", res))
	}
	s.data[key] = res
}

// Get retrieves the resource stored under id, or ErrResourceNotFound.
func (s *Storage) Get(id domain.ID) (domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if res, ok := s.data[id.String()]; ok {
		return res, nil
	}
	return domain.Resource{}, domain.ErrResourceNotFound
}

// Delete removes the resource stored under id, or returns
// ErrResourceNotFound if nothing is stored there.
func (s *Storage) Delete(id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.String()
	if _, ok := s.data[key]; !ok {
		return domain.ErrResourceNotFound
	}
	delete(s.data, key)
	s.lgr.Debug("resource deleted", logger.F("key", key))
	return nil
}

// Len returns the number of resources currently stored.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Between returns every stored resource whose key lies in the arc
// (from, to] on the ring. Nothing calls it to migrate data on membership
// change; it feeds the owned/held diagnostic in the node's info report.
func (s *Storage) Between(from, to domain.ID) []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var inArc []domain.Resource
	for _, res := range s.data {
		if domain.Between(res.Key, from, to, true) {
			inArc = append(inArc, res)
		}
	}
	return inArc
}

// All returns a snapshot copy of every resource currently stored.
func (s *Storage) All() []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Resource, 0, len(s.data))
	for _, res := range s.data {
		out = append(out, res)
	}
	return out
}

// DebugLog emits a DEBUG-level, deterministically ordered snapshot of the
// store's keys.
func (s *Storage) DebugLog() {
	snapshot := s.All()
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Key.Cmp(snapshot[j].Key) < 0
	})
	entries := make([]map[string]any, 0, len(snapshot))
	for _, r := range snapshot {
		entries = append(entries, map[string]any{"key": r.Key.String(), "rawKey": r.RawKey})
	}
	s.lgr.Debug("storage snapshot", logger.F("count", len(snapshot)), logger.F("resources", entries))
}
