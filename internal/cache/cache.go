package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrExists is returned by Add when the key is already present
var ErrExists = errors.New("cache key already exists")

// Cache defines the interface for short-lived in-process state
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Add(key string, value interface{}, ttl time.Duration) error
	Delete(key string)
	Clear()
	Len() int
}

// Key builds a namespaced cache key. Parts are hashed so arbitrary
// user-supplied identifiers stay bounded in length.
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "factbot:v1:" + namespace + ":" + hex.EncodeToString(hash[:8])
}
