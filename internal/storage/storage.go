package storage

import "time"

// ExpiryStatus tells whether a key is missing, persistent or has a deadline
type ExpiryStatus int

const (
	// ExpNotFound means that the key does not exist
	ExpNotFound ExpiryStatus = -2
	// ExpNoTimeout means that the key exists, but it does not have a TTL
	ExpNoTimeout ExpiryStatus = -1
	// ExpActive means that the key has an active lifetime
	ExpActive ExpiryStatus = 1
)

// SetOptions controls the expiration written by Set
type SetOptions struct {
	TTL     time.Duration // key lifetime, 0 means no expiration, negative is rejected
	KeepTTL bool          // if true, retain the existing TTL (ignore TTL field)
}

// Stats is a point-in-time view of the storage counters
type Stats struct {
	Keys          int    // physically stored entries, including expired ones not reclaimed yet
	LazyExpired   uint64 // keys removed on access after their deadline
	ActiveExpired uint64 // keys removed by DeleteExpired
}

// Storage is the keyspace contract used by the engine.
// Every method treats a key past its deadline as absent and removes it on the way
type Storage interface {
	// Get returns the string value and true if a live string is stored at key
	Get(key string) (string, bool)

	// Set overwrites the key with a string value regardless of the previous type.
	// Fails with ErrInvalidTTL when options.TTL can not produce a future deadline
	Set(key, value string, options SetOptions) error

	// Delete deletes the key. Returns true if the key existed and was deleted
	Delete(key string) bool

	// Exists reports whether a live key is stored
	Exists(key string) bool

	// Type returns the type of the live value at key
	Type(key string) (DataType, bool)

	// IncrBy adds delta to the integer stored as a string at key and returns the result
	IncrBy(key string, delta int64) (int64, error)

	// RPush appends values to the tail of the list at key. Returns the new length
	RPush(key string, values ...string) (int64, error)

	// LLen returns the length of the list at key, 0 if absent
	LLen(key string) (int64, error)

	// LPop removes and returns the head of the list at key
	LPop(key string) (string, bool, error)

	// HSet upserts fields in the hash at key. Returns the number of new fields
	HSet(key string, fields map[string]string) (int64, error)

	// HGet returns the value associated with field in the hash stored at key
	HGet(key, field string) (string, bool, error)

	// Expiry returns the remaining lifetime and status as ExpiryStatus
	Expiry(key string) (time.Duration, ExpiryStatus)

	// Expire sets a deadline on an existing key. Returns false if the key is absent
	Expire(key string, ttl time.Duration) (bool, error)

	// Persist removes the expiration date of the key, making it eternal.
	// Returns true if the key had a deadline
	Persist(key string) bool

	// DeleteExpired samples up to limit keys with a deadline and deletes the expired ones.
	// Returns the expired/sampled ratio
	DeleteExpired(limit int) float64

	// Flush removes every key
	Flush()

	// Len returns the number of physically stored entries
	Len() int

	// Stats returns the storage counters
	Stats() Stats
}
