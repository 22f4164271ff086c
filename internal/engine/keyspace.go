package engine

import (
	"time"

	"github.com/eternalApril/moonkv/internal/storage"
)

// Ping reports that the engine is initialized. It never fails
func (e *Engine) Ping() string {
	return "PONG"
}

// Set overwrites key with a string value and clears its expiration
func (e *Engine) Set(key, value string) {
	// no TTL, nothing to reject
	e.storage.Set(key, value, storage.SetOptions{}) //nolint:errcheck
}

// SetWithExpiry is Set plus a deadline ttl from now. ttl must be positive and
// the deadline must be representable, otherwise ErrInvalidTTL is returned and nothing is written
func (e *Engine) SetWithExpiry(key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return storage.ErrInvalidTTL
	}
	return e.SetWithOptions(key, value, storage.SetOptions{TTL: ttl})
}

// SetWithOptions writes a string value with full control over its expiration
func (e *Engine) SetWithOptions(key, value string, opts storage.SetOptions) error {
	return e.storage.Set(key, value, opts)
}

// Get returns the string at key. Missing, expired and non-string keys are all absent
func (e *Engine) Get(key string) (string, bool) {
	return e.storage.Get(key)
}

// Delete removes the given keys of any type and returns how many existed
func (e *Engine) Delete(keys ...string) int64 {
	var removed int64
	for _, key := range keys {
		if e.storage.Delete(key) {
			removed++
		}
	}
	return removed
}

// Exists counts the live keys among keys. A key given twice counts twice
func (e *Engine) Exists(keys ...string) int64 {
	var n int64
	for _, key := range keys {
		if e.storage.Exists(key) {
			n++
		}
	}
	return n
}

// Increment atomically adds 1 to the integer stored at key
func (e *Engine) Increment(key string) (int64, error) {
	return e.storage.IncrBy(key, 1)
}

// IncrementBy atomically adds delta to the integer stored at key
func (e *Engine) IncrementBy(key string, delta int64) (int64, error) {
	return e.storage.IncrBy(key, delta)
}

// PushRight appends values to the list at key and returns its new length
func (e *Engine) PushRight(key string, values ...string) (int64, error) {
	return e.storage.RPush(key, values...)
}

// Length returns the number of elements of the list at key
func (e *Engine) Length(key string) (int64, error) {
	return e.storage.LLen(key)
}

// PopLeft removes and returns the head of the list at key
func (e *Engine) PopLeft(key string) (string, bool, error) {
	return e.storage.LPop(key)
}

// SetFields upserts fields of the hash at key and returns the number of new fields
func (e *Engine) SetFields(key string, fields map[string]string) (int64, error) {
	return e.storage.HSet(key, fields)
}

// GetField returns one field of the hash at key
func (e *Engine) GetField(key, field string) (string, bool, error) {
	return e.storage.HGet(key, field)
}

// TTL returns the remaining lifetime of key
func (e *Engine) TTL(key string) (time.Duration, storage.ExpiryStatus) {
	return e.storage.Expiry(key)
}

// Expire sets a deadline on an existing key
func (e *Engine) Expire(key string, ttl time.Duration) (bool, error) {
	return e.storage.Expire(key, ttl)
}

// Persist drops the deadline of key
func (e *Engine) Persist(key string) bool {
	return e.storage.Persist(key)
}

// Type returns the type name of the value at key, "none" when absent
func (e *Engine) Type(key string) string {
	t, ok := e.storage.Type(key)
	if !ok {
		return "none"
	}
	return t.String()
}

// FlushAll removes every key
func (e *Engine) FlushAll() {
	e.storage.Flush()
	e.logger.Info("keyspace flushed")
}
