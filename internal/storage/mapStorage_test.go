package storage

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock drives the deadline checks of a shard without sleeping
type manualClock struct {
	ns atomic.Int64
}

func (c *manualClock) now() int64 {
	return c.ns.Load()
}

func (c *manualClock) advance(d time.Duration) {
	c.ns.Add(int64(d))
}

func newClockedMapStorage() (*MapStorage, *manualClock) {
	clock := &manualClock{}
	clock.ns.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())

	m := NewMapStorage()
	m.now = clock.now
	return m, clock
}

func TestMapStorage_SetGetDelete(t *testing.T) {
	m := NewMapStorage()

	_, ok := m.Get("test_key")
	assert.False(t, ok)

	m.Set("test_key", "hello_world", SetOptions{})
	val, ok := m.Get("test_key")
	require.True(t, ok)
	assert.Equal(t, "hello_world", val)

	assert.True(t, m.Delete("test_key"))
	assert.False(t, m.Delete("test_key"), "second delete is a no-op")

	_, ok = m.Get("test_key")
	assert.False(t, ok)
}

func TestMapStorage_SetOverwritesOtherTypes(t *testing.T) {
	m := NewMapStorage()

	_, err := m.RPush("k", "a", "b")
	require.NoError(t, err)

	m.Set("k", "plain", SetOptions{})

	typ, ok := m.Type("k")
	require.True(t, ok)
	assert.Equal(t, TypeString, typ)

	val, _ := m.Get("k")
	assert.Equal(t, "plain", val)
}

func TestMapStorage_GetNonString(t *testing.T) {
	m := NewMapStorage()

	_, err := m.HSet("user:100", map[string]string{"name": "Alice"})
	require.NoError(t, err)

	_, ok := m.Get("user:100")
	assert.False(t, ok, "GET on a hash reports absence")
	assert.True(t, m.Exists("user:100"))
}

func TestMapStorage_Expiration(t *testing.T) {
	m, clock := newClockedMapStorage()

	m.Set("temp_key", "expires_fast", SetOptions{TTL: time.Second})

	val, ok := m.Get("temp_key")
	require.True(t, ok)
	assert.Equal(t, "expires_fast", val)

	ttl, status := m.Expiry("temp_key")
	assert.Equal(t, ExpActive, status)
	assert.Equal(t, time.Second, ttl)

	// the deadline itself is still valid, only passing it expires the key
	clock.advance(time.Second)
	_, ok = m.Get("temp_key")
	assert.True(t, ok)

	clock.advance(time.Nanosecond)
	_, ok = m.Get("temp_key")
	assert.False(t, ok)

	assert.Equal(t, 0, m.Len(), "expired key is removed on access")
	assert.Equal(t, uint64(1), m.Stats().LazyExpired)

	_, status = m.Expiry("temp_key")
	assert.Equal(t, ExpNotFound, status)
}

func TestMapStorage_SetClearsTTL(t *testing.T) {
	m, clock := newClockedMapStorage()

	m.Set("k", "v1", SetOptions{TTL: time.Second})
	m.Set("k", "v2", SetOptions{})

	_, status := m.Expiry("k")
	assert.Equal(t, ExpNoTimeout, status)

	clock.advance(time.Hour)
	val, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", val)
}

func TestMapStorage_KeepTTL(t *testing.T) {
	m, clock := newClockedMapStorage()

	m.Set("k", "v1", SetOptions{TTL: 10 * time.Second})
	clock.advance(time.Second)
	m.Set("k", "v2", SetOptions{KeepTTL: true})

	ttl, status := m.Expiry("k")
	assert.Equal(t, ExpActive, status)
	assert.Equal(t, 9*time.Second, ttl)

	m.Set("fresh", "v", SetOptions{KeepTTL: true})
	_, status = m.Expiry("fresh")
	assert.Equal(t, ExpNoTimeout, status)

	// an expired deadline is not carried over by KEEPTTL
	m.Set("short", "v", SetOptions{TTL: time.Second})
	clock.advance(2 * time.Second)
	m.Set("short", "again", SetOptions{KeepTTL: true})
	_, status = m.Expiry("short")
	assert.Equal(t, ExpNoTimeout, status)
}

func TestMapStorage_IncrBy(t *testing.T) {
	m := NewMapStorage()

	m.Set("counter", "10", SetOptions{})
	n, err := m.IncrBy("counter", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	val, _ := m.Get("counter")
	assert.Equal(t, "11", val)

	n, err = m.IncrBy("fresh", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.IncrBy("fresh", -5)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), n)
}

func TestMapStorage_IncrByErrors(t *testing.T) {
	m := NewMapStorage()

	m.Set("text", "abc", SetOptions{})
	_, err := m.IncrBy("text", 1)
	assert.ErrorIs(t, err, ErrNotInteger)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	val, _ := m.Get("text")
	assert.Equal(t, "abc", val, "failed increment leaves the value untouched")

	m.Set("max", strconv.FormatInt(math.MaxInt64, 10), SetOptions{})
	_, err = m.IncrBy("max", 1)
	assert.ErrorIs(t, err, ErrOverflow)

	m.Set("min", strconv.FormatInt(math.MinInt64, 10), SetOptions{})
	_, err = m.IncrBy("min", -1)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = m.RPush("list", "x")
	require.NoError(t, err)
	_, err = m.IncrBy("list", 1)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestMapStorage_IncrByKeepsTTL(t *testing.T) {
	m, _ := newClockedMapStorage()

	m.Set("counter", "1", SetOptions{TTL: time.Minute})
	_, err := m.IncrBy("counter", 1)
	require.NoError(t, err)

	ttl, status := m.Expiry("counter")
	assert.Equal(t, ExpActive, status)
	assert.Equal(t, time.Minute, ttl)
}

func TestMapStorage_List(t *testing.T) {
	m := NewMapStorage()

	n, err := m.RPush("mylist", "item1", "item2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = m.LLen("mylist")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	head, ok, err := m.LPop("mylist")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "item1", head)

	n, _ = m.LLen("mylist")
	assert.Equal(t, int64(1), n)

	head, ok, _ = m.LPop("mylist")
	require.True(t, ok)
	assert.Equal(t, "item2", head)

	assert.False(t, m.Exists("mylist"), "emptied list is deleted")

	_, ok, err = m.LPop("mylist")
	assert.NoError(t, err)
	assert.False(t, ok)

	n, err = m.LLen("mylist")
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestMapStorage_ListTypeErrors(t *testing.T) {
	m := NewMapStorage()
	m.Set("str", "value", SetOptions{})

	_, err := m.RPush("str", "a")
	assert.ErrorIs(t, err, ErrWrongType)

	val, ok := m.Get("str")
	require.True(t, ok, "failed push must not overwrite")
	assert.Equal(t, "value", val)

	_, err = m.LLen("str")
	assert.ErrorIs(t, err, ErrWrongType)

	_, _, err = m.LPop("str")
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = m.RPush("empty")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, m.Exists("empty"))
}

func TestMapStorage_PushOnExpiredList(t *testing.T) {
	m, clock := newClockedMapStorage()

	_, err := m.RPush("l", "old1", "old2")
	require.NoError(t, err)
	_, err = m.Expire("l", time.Second)
	require.NoError(t, err)

	clock.advance(2 * time.Second)

	n, err := m.RPush("l", "new")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expired list is replaced by a fresh one")

	_, status := m.Expiry("l")
	assert.Equal(t, ExpNoTimeout, status)
}

func TestMapStorage_Hash(t *testing.T) {
	m := NewMapStorage()

	added, err := m.HSet("user:100", map[string]string{"name": "Alice", "score": "50"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), added)

	added, err = m.HSet("user:100", map[string]string{"score": "51", "city": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)

	val, ok, err := m.HGet("user:100", "name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", val)

	val, _, _ = m.HGet("user:100", "score")
	assert.Equal(t, "51", val)

	_, ok, err = m.HGet("user:100", "missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.HGet("nobody", "name")
	assert.NoError(t, err)
	assert.False(t, ok)

	m.Set("str", "v", SetOptions{})
	_, err = m.HSet("str", map[string]string{"f": "v"})
	assert.ErrorIs(t, err, ErrWrongType)
	_, _, err = m.HGet("str", "f")
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = m.HSet("h", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMapStorage_ExpirePersist(t *testing.T) {
	m, clock := newClockedMapStorage()

	ok, err := m.Expire("missing", time.Second)
	assert.NoError(t, err)
	assert.False(t, ok)

	m.Set("k", "v", SetOptions{})
	_, err = m.Expire("k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
	_, err = m.Expire("k", -time.Second)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	assert.False(t, m.Persist("k"), "no deadline to remove")

	ok, err = m.Expire("k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, m.Persist("k"))
	clock.advance(time.Hour)
	assert.True(t, m.Exists("k"))
}

func TestMapStorage_TTLUpperBound(t *testing.T) {
	m, clock := newClockedMapStorage()

	// the largest TTL whose deadline still fits in int64
	maxTTL := time.Duration(math.MaxInt64 - clock.now())

	err := m.Set("k", "v", SetOptions{TTL: maxTTL + 1})
	assert.ErrorIs(t, err, ErrInvalidTTL)
	err = m.Set("k", "v", SetOptions{TTL: time.Duration(math.MaxInt64)})
	assert.ErrorIs(t, err, ErrInvalidTTL)
	err = m.Set("k", "v", SetOptions{TTL: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidTTL)
	assert.False(t, m.Exists("k"), "rejected set must not write")

	require.NoError(t, m.Set("k", "old", SetOptions{}))
	err = m.Set("k", "new", SetOptions{TTL: time.Duration(math.MaxInt64)})
	assert.ErrorIs(t, err, ErrInvalidTTL)
	val, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "old", val)

	ok, err = m.Expire("k", time.Duration(math.MaxInt64))
	assert.ErrorIs(t, err, ErrInvalidTTL)
	assert.False(t, ok)
	_, status := m.Expiry("k")
	assert.Equal(t, ExpNoTimeout, status, "rejected expire must not leave a deadline")

	ok, err = m.Expire("k", maxTTL)
	require.NoError(t, err)
	assert.True(t, ok)
	clock.advance(100 * 365 * 24 * time.Hour)
	assert.True(t, m.Exists("k"), "a far deadline keeps the key alive")

	require.NoError(t, m.Set("k2", "v", SetOptions{TTL: maxTTL}))
	_, status = m.Expiry("k2")
	assert.Equal(t, ExpActive, status)
}

func TestMapStorage_DeleteExpired(t *testing.T) {
	m, clock := newClockedMapStorage()

	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("short-%d", i), "v", SetOptions{TTL: time.Second})
	}
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("long-%d", i), "v", SetOptions{TTL: time.Hour})
	}
	m.Set("forever", "v", SetOptions{})

	assert.Zero(t, m.DeleteExpired(100), "nothing is expired yet")

	clock.advance(time.Minute)

	ratio := m.DeleteExpired(100)
	assert.InDelta(t, 0.5, ratio, 0.001)
	assert.Equal(t, 11, m.Len())
	assert.Equal(t, uint64(10), m.Stats().ActiveExpired)
	assert.Zero(t, m.Stats().LazyExpired)

	assert.Zero(t, m.DeleteExpired(0))
}

func TestMapStorage_DeleteExpiredRespectsLimit(t *testing.T) {
	m, clock := newClockedMapStorage()

	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("k-%d", i), "v", SetOptions{TTL: time.Second})
	}
	clock.advance(time.Minute)

	ratio := m.DeleteExpired(20)
	assert.Equal(t, 1.0, ratio)
	assert.Equal(t, 30, m.Len())
}

func TestMapStorage_Flush(t *testing.T) {
	m := NewMapStorage()
	m.Set("a", "1", SetOptions{TTL: time.Hour})
	_, _ = m.RPush("b", "x")
	_, _ = m.HSet("c", map[string]string{"f": "v"})

	m.Flush()

	assert.Zero(t, m.Len())
	assert.False(t, m.Exists("a"))
	_, status := m.Expiry("a")
	assert.Equal(t, ExpNotFound, status)
}

func TestMapStorage_ConcurrentIncrBy(t *testing.T) {
	m := NewMapStorage()
	const workers = 50
	const perWorker = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := m.IncrBy("counter", 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	val, _ := m.Get("counter")
	assert.Equal(t, strconv.Itoa(workers*perWorker), val)
}

func TestMapStorage_Concurrency(t *testing.T) {
	s := NewMapStorage()
	const workers = 100
	const opsPerWorker = 10000

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for j := 0; j < opsPerWorker; j++ {
				key := fmt.Sprintf("key-%d", r.Intn(50))
				val := fmt.Sprintf("val-%d", j)

				switch r.Intn(7) {
				case 0:
					s.Set(key, val, SetOptions{TTL: time.Duration(r.Intn(3)) * time.Millisecond})
				case 1:
					s.Get(key)
				case 2:
					s.Delete(key)
				case 3:
					s.RPush(key, val) //nolint:errcheck
				case 4:
					s.LPop(key) //nolint:errcheck
				case 5:
					s.HSet(key, map[string]string{"f": val}) //nolint:errcheck
				case 6:
					s.DeleteExpired(5)
				}
			}
		}(i)
	}

	wg.Wait()
}

func FuzzMapStorage(f *testing.F) {
	s := NewMapStorage()

	f.Add("key1", "val1")
	f.Add("special", "!@#$%^&*()")
	f.Add("", "\x00\xff")

	f.Fuzz(func(t *testing.T, key string, val string) {
		s.Set(key, val, SetOptions{})

		v, ok := s.Get(key)
		if !ok || v != val {
			t.Errorf("Get failed after Set: key=%q, val=%q", key, val)
		}
	})
}
