package storage

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MapStorage is a thread-safe keyspace shard.
// All read-modify-write steps on a key run under the write lock
type MapStorage struct {
	data    map[string]*Value // key - value
	expires map[string]int64  // key - expires time nanoseconds
	mu      sync.RWMutex

	now func() int64

	lazyExpired   atomic.Uint64
	activeExpired atomic.Uint64
}

// NewMapStorage creates a new instance of MapStorage.
func NewMapStorage() *MapStorage {
	return &MapStorage{
		data:    make(map[string]*Value),
		expires: make(map[string]int64),
		now:     func() int64 { return time.Now().UnixNano() },
	}
}

// expired reports whether the key has a deadline before now. Caller must hold a lock
func (m *MapStorage) expired(key string, now int64) bool {
	exp, hasExp := m.expires[key]
	return hasExp && now > exp
}

func (m *MapStorage) remove(key string) {
	delete(m.data, key)
	delete(m.expires, key)
}

// lookup returns the live value at key, deleting it first if the deadline has passed.
// Caller must hold the write lock
func (m *MapStorage) lookup(key string) (*Value, bool) {
	v, ok := m.data[key]
	if !ok {
		return nil, false
	}

	if m.expired(key, m.now()) {
		m.remove(key)
		m.lazyExpired.Add(1)
		return nil, false
	}

	return v, true
}

// view calls fn with the live value at key while holding the read lock.
// An expired key is reclaimed under the write lock and reported as absent
func (m *MapStorage) view(key string, fn func(v *Value, ok bool)) {
	m.mu.RLock()
	v, ok := m.data[key]

	if ok && m.expired(key, m.now()) {
		m.mu.RUnlock()

		m.mu.Lock()
		defer m.mu.Unlock()

		// checking again, can be changed while waiting for the lock
		v, ok = m.lookup(key)
		fn(v, ok)
		return
	}

	defer m.mu.RUnlock()
	fn(v, ok)
}

// Get returns the value and true if a live string is stored at key. Otherwise, "", false
func (m *MapStorage) Get(key string) (string, bool) {
	var (
		res   string
		found bool
	)

	m.view(key, func(v *Value, ok bool) {
		if ok && v.Type == TypeString {
			res, found = v.Str, true
		}
	})

	return res, found
}

// deadline returns now+ttl in nanoseconds. The TTL must be positive and the
// deadline must fit in int64, otherwise the key would be born expired
func deadline(now int64, ttl time.Duration) (int64, error) {
	if ttl <= 0 || int64(ttl) > math.MaxInt64-now {
		return 0, ErrInvalidTTL
	}
	return now + int64(ttl), nil
}

// Set writes a string value based on the options, replacing any previous type.
// A TTL that can not produce a future deadline fails with ErrInvalidTTL and writes nothing
func (m *MapStorage) Set(key, value string, options SetOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp int64
	if !options.KeepTTL && options.TTL != 0 {
		var err error
		if exp, err = deadline(m.now(), options.TTL); err != nil {
			return err
		}
	}

	// drops an expired deadline so KEEPTTL never revives it
	m.lookup(key)

	m.data[key] = newString(value)

	switch {
	case options.KeepTTL:
		// retain whatever live deadline is there, a fresh key stays persistent
	case exp != 0:
		m.expires[key] = exp
	default:
		delete(m.expires, key)
	}

	return nil
}

// Delete deletes the key. Returns true if the key existed and was deleted
func (m *MapStorage) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); !ok {
		return false
	}

	m.remove(key)
	return true
}

// Exists reports whether a live key is stored
func (m *MapStorage) Exists(key string) bool {
	var found bool
	m.view(key, func(_ *Value, ok bool) {
		found = ok
	})
	return found
}

// Type returns the type of the live value at key
func (m *MapStorage) Type(key string) (DataType, bool) {
	var t DataType
	m.view(key, func(v *Value, ok bool) {
		if ok {
			t = v.Type
		}
	})
	return t, t != 0
}

// IncrBy parses the stored string as int64, adds delta and stores the result.
// An absent key starts from 0. The deadline of the key is kept
func (m *MapStorage) IncrBy(key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lookup(key)

	var current int64
	if ok {
		if v.Type != TypeString {
			return 0, ErrWrongType
		}

		n, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		current = n
	}

	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return 0, ErrOverflow
	}
	current += delta

	if ok {
		v.Str = strconv.FormatInt(current, 10)
	} else {
		m.data[key] = newString(strconv.FormatInt(current, 10))
	}

	return current, nil
}

// RPush appends values to the tail of the list at key, creating the list if needed
func (m *MapStorage) RPush(key string, values ...string) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: no values to push", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lookup(key)
	if ok && v.Type != TypeList {
		return 0, ErrWrongType
	}

	if !ok {
		v = newList()
		m.data[key] = v
	}

	v.List = append(v.List, values...)

	return int64(len(v.List)), nil
}

// LLen returns the length of the list at key. Absent key has length 0
func (m *MapStorage) LLen(key string) (int64, error) {
	var (
		n   int64
		err error
	)

	m.view(key, func(v *Value, ok bool) {
		if !ok {
			return
		}
		if v.Type != TypeList {
			err = ErrWrongType
			return
		}
		n = int64(len(v.List))
	})

	return n, err
}

// LPop removes and returns the head of the list. The key is deleted when the list becomes empty
func (m *MapStorage) LPop(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lookup(key)
	if !ok {
		return "", false, nil
	}

	if v.Type != TypeList {
		return "", false, ErrWrongType
	}

	if len(v.List) == 0 {
		m.remove(key)
		return "", false, nil
	}

	head := v.List[0]
	v.List[0] = "" // release the reference held by the backing array
	v.List = v.List[1:]

	if len(v.List) == 0 {
		m.remove(key)
	}

	return head, true, nil
}

// HSet sets the specified fields to their respective values in the hash stored at key.
// Returns the number of fields that were added
func (m *MapStorage) HSet(key string, fields map[string]string) (int64, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: no fields to set", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lookup(key)
	if ok && v.Type != TypeHash {
		return 0, ErrWrongType
	}

	if !ok {
		v = newHash()
		m.data[key] = v
	}

	var added int64
	for field, value := range fields {
		if _, exists := v.Hash[field]; !exists {
			added++
		}
		v.Hash[field] = value
	}

	return added, nil
}

// HGet returns the value associated with field in the hash stored at key
func (m *MapStorage) HGet(key, field string) (string, bool, error) {
	var (
		res   string
		found bool
		err   error
	)

	m.view(key, func(v *Value, ok bool) {
		if !ok {
			return
		}
		if v.Type != TypeHash {
			err = ErrWrongType
			return
		}
		res, found = v.Hash[field]
	})

	return res, found, err
}

// Expiry returns the remaining lifetime and status as ExpiryStatus
func (m *MapStorage) Expiry(key string) (time.Duration, ExpiryStatus) {
	var (
		ttl    time.Duration
		status = ExpNotFound
	)

	m.view(key, func(_ *Value, ok bool) {
		if !ok {
			return
		}

		exp, hasExp := m.expires[key]
		if !hasExp {
			status = ExpNoTimeout
			return
		}

		ttl, status = time.Duration(exp-m.now()), ExpActive
	})

	return ttl, status
}

// Expire sets the key lifetime. Returns false if there is no live key
func (m *MapStorage) Expire(key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, err := deadline(m.now(), ttl)
	if err != nil {
		return false, err
	}

	if _, ok := m.lookup(key); !ok {
		return false, nil
	}

	m.expires[key] = exp
	return true, nil
}

// Persist removes the expiration date of the key, making it eternal.
// Returns true if the key had a deadline
func (m *MapStorage) Persist(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); !ok {
		return false
	}

	if _, hasExp := m.expires[key]; !hasExp {
		return false
	}

	delete(m.expires, key)
	return true
}

// DeleteExpired samples up to limit keys with a deadline and deletes the expired ones.
// Sampling runs under the read lock, each removal takes the write lock on its own
func (m *MapStorage) DeleteExpired(limit int) float64 {
	if limit <= 0 {
		return 0.0
	}

	m.mu.RLock()

	if len(m.expires) == 0 {
		m.mu.RUnlock()
		return 0.0
	}

	checked := 0
	candidates := make([]string, 0, limit)
	now := m.now()

	// go map iteration is randomized by design
	for key, expTime := range m.expires {
		checked++
		if now > expTime {
			candidates = append(candidates, key)
		}

		if checked >= limit {
			break
		}
	}

	m.mu.RUnlock()

	expired := 0
	for _, key := range candidates {
		m.mu.Lock()
		// checking again, the key can be rewritten between the sample and the lock
		if _, ok := m.data[key]; ok && m.expired(key, m.now()) {
			m.remove(key)
			expired++
		}
		m.mu.Unlock()
	}

	m.activeExpired.Add(uint64(expired))

	return float64(expired) / float64(checked)
}

// Flush removes every key of the shard
func (m *MapStorage) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]*Value)
	m.expires = make(map[string]int64)
}

// Len returns the number of stored entries
func (m *MapStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Stats returns the shard counters
func (m *MapStorage) Stats() Stats {
	return Stats{
		Keys:          m.Len(),
		LazyExpired:   m.lazyExpired.Load(),
		ActiveExpired: m.activeExpired.Load(),
	}
}
