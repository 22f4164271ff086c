package storage

import (
	"errors"
	"math/bits"
	"sync"
	"time"

	"github.com/twmb/murmur3"
)

// MaxShards is the upper bound for the shard count
const MaxShards = 256

// ShardedMapStorage is a thread-safe keyspace,
// divided into segments (shards) to reduce contention for locking.
// Operations on keys of different shards never wait for each other
type ShardedMapStorage struct {
	shards    []*MapStorage
	shardMask uint32
}

// NewShardedMapStorage creates a new instance of ShardedMapStorage.
// The requestedShards parameter must be a power of two for efficient allocation.
// The maximum allowed number of shards is MaxShards.
func NewShardedMapStorage(requestedShards uint) (*ShardedMapStorage, error) {
	if bits.OnesCount(requestedShards) != 1 {
		return nil, errors.New("requested shards must be a power of 2")
	}

	if requestedShards > MaxShards {
		return nil, errors.New("requested shards must be less or equal than 256")
	}

	s := &ShardedMapStorage{
		shards:    make([]*MapStorage, requestedShards),
		shardMask: uint32(requestedShards - 1),
	}

	for i := range s.shards {
		s.shards[i] = NewMapStorage()
	}

	return s, nil
}

// getShardIndex returns index of shard by key
func (s *ShardedMapStorage) getShardIndex(key string) uint32 {
	return murmur3.Sum32([]byte(key)) & s.shardMask
}

func (s *ShardedMapStorage) shard(key string) *MapStorage {
	return s.shards[s.getShardIndex(key)]
}

// Get returns the value and true if a live string is stored at key. Otherwise, "", false.
func (s *ShardedMapStorage) Get(key string) (string, bool) {
	return s.shard(key).Get(key)
}

// Set writes the value based on the options.
func (s *ShardedMapStorage) Set(key, value string, options SetOptions) error {
	return s.shard(key).Set(key, value, options)
}

// Delete deletes the key. Returns true if the key existed and was deleted.
func (s *ShardedMapStorage) Delete(key string) bool {
	return s.shard(key).Delete(key)
}

func (s *ShardedMapStorage) Exists(key string) bool {
	return s.shard(key).Exists(key)
}

func (s *ShardedMapStorage) Type(key string) (DataType, bool) {
	return s.shard(key).Type(key)
}

// IncrBy delegates to the shard owning the key, which serializes concurrent increments
func (s *ShardedMapStorage) IncrBy(key string, delta int64) (int64, error) {
	return s.shard(key).IncrBy(key, delta)
}

func (s *ShardedMapStorage) RPush(key string, values ...string) (int64, error) {
	return s.shard(key).RPush(key, values...)
}

func (s *ShardedMapStorage) LLen(key string) (int64, error) {
	return s.shard(key).LLen(key)
}

func (s *ShardedMapStorage) LPop(key string) (string, bool, error) {
	return s.shard(key).LPop(key)
}

// HSet sets the specified fields to their respective values in the hash stored at key
func (s *ShardedMapStorage) HSet(key string, fields map[string]string) (int64, error) {
	return s.shard(key).HSet(key, fields)
}

// HGet returns the value associated with field in the hash stored at key
func (s *ShardedMapStorage) HGet(key, field string) (string, bool, error) {
	return s.shard(key).HGet(key, field)
}

// Expiry returns the remaining lifetime and status as ExpiryStatus
func (s *ShardedMapStorage) Expiry(key string) (time.Duration, ExpiryStatus) {
	return s.shard(key).Expiry(key)
}

func (s *ShardedMapStorage) Expire(key string, ttl time.Duration) (bool, error) {
	return s.shard(key).Expire(key, ttl)
}

// Persist removes the expiration date of the key, making it eternal.
func (s *ShardedMapStorage) Persist(key string) bool {
	return s.shard(key).Persist(key)
}

// DeleteExpired randomly selects a limit of keys from each shard and delete if his TTL has expired
func (s *ShardedMapStorage) DeleteExpired(limit int) float64 {
	var wg sync.WaitGroup
	var totalRatio float64
	var mu sync.Mutex // protects totalRatio

	shardCount := len(s.shards)
	wg.Add(shardCount)

	for _, shard := range s.shards {
		go func(m *MapStorage) {
			defer wg.Done()

			ratio := m.DeleteExpired(limit)

			mu.Lock()
			totalRatio += ratio
			mu.Unlock()
		}(shard)
	}

	wg.Wait()

	return totalRatio / float64(shardCount)
}

// Flush empties the shards one after another, so no shard is locked for longer than its own reset
func (s *ShardedMapStorage) Flush() {
	for _, shard := range s.shards {
		shard.Flush()
	}
}

func (s *ShardedMapStorage) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}

// Stats sums the counters of all shards
func (s *ShardedMapStorage) Stats() Stats {
	var total Stats
	for _, shard := range s.shards {
		st := shard.Stats()
		total.Keys += st.Keys
		total.LazyExpired += st.LazyExpired
		total.ActiveExpired += st.ActiveExpired
	}
	return total
}
