package registry

import (
	"context"
	"math"
	"sync"

	"provenance/pkg/platform/sentinel"
)

// MemoryStore keeps registry state in process memory. It favors clarity over
// performance and is the default when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[ContentID]ContentRecord
	byFp     map[Fingerprint]ContentID
	nextID   uint64
	rule     string
	ruleInit bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[ContentID]ContentRecord),
		byFp:    make(map[Fingerprint]ContentID),
		nextID:  1,
	}
}

func (s *MemoryStore) CreateContent(_ context.Context, fp Fingerprint, owner Principal) (ContentID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byFp[fp]; ok {
		return id, false, nil
	}
	if s.nextID == math.MaxUint64 {
		return 0, false, ErrCounterOverflow
	}
	id := ContentID(s.nextID)
	s.nextID++
	s.records[id] = ContentRecord{Fingerprint: fp, Owner: owner}
	s.byFp[fp] = id
	return id, true, nil
}

func (s *MemoryStore) FindContent(_ context.Context, id ContentID) (*ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[id]; ok {
		return &rec, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) LookupFingerprint(_ context.Context, fp Fingerprint) (ContentID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byFp[fp]; ok {
		return id, nil
	}
	return 0, sentinel.ErrNotFound
}

func (s *MemoryStore) TransferOwner(_ context.Context, id ContentID, newOwner Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Owner = newOwner
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) Rule(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rule, nil
}

func (s *MemoryStore) SetRule(_ context.Context, rule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rule = rule
	s.ruleInit = true
	return nil
}

func (s *MemoryStore) SeedRule(_ context.Context, rule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ruleInit {
		return nil
	}
	s.rule = rule
	s.ruleInit = true
	return nil
}
