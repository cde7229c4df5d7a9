package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/factline/internal/model"
)

// FactStore stores fact sets keyed by their source document
type FactStore struct {
	cache Cache
	ttl   time.Duration
}

// NewFactStore wraps c. A zero ttl defers to the cache's own default.
func NewFactStore(c Cache, ttl time.Duration) *FactStore {
	return &FactStore{cache: c, ttl: ttl}
}

// Get returns the cached fact set for src
func (s *FactStore) Get(src model.SourceDocument) (model.FactSet, bool) {
	data, ok := s.cache.Get(FactKey(src))
	if !ok {
		return model.FactSet{}, false
	}
	var set model.FactSet
	if err := json.Unmarshal(data, &set); err != nil {
		return model.FactSet{}, false
	}
	if set.Facts == nil {
		set.Facts = []model.Fact{}
	}
	return set, true
}

// Put stores set for src. Degraded sets are never stored, so a later run
// retries the extraction.
func (s *FactStore) Put(src model.SourceDocument, set model.FactSet) error {
	if set.Degraded {
		return nil
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal fact set: %w", err)
	}
	if err := s.cache.Set(FactKey(src), data, s.ttl); err != nil {
		return fmt.Errorf("cache fact set: %w", err)
	}
	return nil
}
