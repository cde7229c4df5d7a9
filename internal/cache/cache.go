// Package cache keeps extracted fact sets so that formats and reruns of the
// same document skip the extraction call.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/factline/internal/model"
)

// Cache defines the byte-level store behind FactStore
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "factline:v1:facts:"

// FactKey fingerprints a source document. Documents with the same text
// and origin share a key; the publication date does not take part.
func FactKey(src model.SourceDocument) string {
	h := sha256.New()
	h.Write([]byte(src.OriginID))
	h.Write([]byte{0})
	h.Write([]byte(src.Text))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// FromConfig builds the cache described by cfg, or nil when caching is off
func FromConfig(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	memoryTTL := time.Duration(cfg.MemoryTTLMin) * time.Minute
	if cfg.Dir == "" {
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(memoryTTL, cfg.Dir, time.Duration(cfg.DiskTTLHours)*time.Hour)
}
