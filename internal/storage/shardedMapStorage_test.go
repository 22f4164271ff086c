package storage

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShardedMapStorage(t *testing.T) {
	tests := []struct {
		name        string
		shards      uint
		expectError bool
	}{
		{"Valid 1 shard", 1, false},
		{"Valid 2 shards", 2, false},
		{"Valid 64 shards", 64, false},
		{"Valid 256 shards", 256, false},
		{"Invalid 0 shards", 0, true},
		{"Invalid 3 shards (not power of 2)", 3, true},
		{"Invalid 63 shards (not power of 2)", 63, true},
		{"Invalid 512 shards (too many)", 512, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewShardedMapStorage(tt.shards)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}

			require.NoError(t, err)
			assert.Len(t, s.shards, int(tt.shards))
			assert.Equal(t, uint32(tt.shards-1), s.shardMask)
		})
	}
}

func TestShardedMapStorage_Distribution(t *testing.T) {
	shardsCount := uint(16)
	s, err := NewShardedMapStorage(shardsCount)
	require.NoError(t, err)

	keysPopulated := make(map[uint32]int)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		s.Set(key, "val", SetOptions{})

		shardIdx := s.getShardIndex(key)

		_, ok := s.shards[shardIdx].Get(key)
		assert.True(t, ok, "key %s hashed to shard %d but not found there", key, shardIdx)
		keysPopulated[shardIdx]++
	}

	if len(keysPopulated) < int(shardsCount) {
		t.Logf("Warning: Not all shards were used with 100 keys. Used: %d/%d.", len(keysPopulated), shardsCount)
	}

	assert.Equal(t, 100, s.Len())
}

func TestShardedMapStorage_Commands(t *testing.T) {
	s, err := NewShardedMapStorage(8)
	require.NoError(t, err)

	s.Set("test_key", "hello_world", SetOptions{})
	val, ok := s.Get("test_key")
	require.True(t, ok)
	assert.Equal(t, "hello_world", val)

	_, err = s.RPush("mylist", "item1", "item2")
	require.NoError(t, err)
	n, err := s.LLen("mylist")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	head, ok, err := s.LPop("mylist")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "item1", head)

	_, err = s.HSet("user:100", map[string]string{"name": "Alice", "score": "50"})
	require.NoError(t, err)
	name, ok, err := s.HGet("user:100", "name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", name)

	typ, ok := s.Type("user:100")
	require.True(t, ok)
	assert.Equal(t, TypeHash, typ)

	_, err = s.RPush("test_key", "x")
	assert.ErrorIs(t, err, ErrWrongType)

	s.Flush()
	assert.Zero(t, s.Len())
	assert.False(t, s.Exists("user:100"))
}

func TestShardedMapStorage_DeleteExpired(t *testing.T) {
	s, err := NewShardedMapStorage(4)
	require.NoError(t, err)

	for i := 0; i < 40; i++ {
		s.Set(fmt.Sprintf("k-%d", i), "v", SetOptions{TTL: time.Millisecond})
	}
	s.Set("stay", "v", SetOptions{})

	time.Sleep(5 * time.Millisecond)

	for s.DeleteExpired(20) > 0 {
	}

	assert.Equal(t, 1, s.Len())
	st := s.Stats()
	assert.Equal(t, uint64(40), st.ActiveExpired)
	assert.Equal(t, 1, st.Keys)
}

func TestShardedMapStorage_ConcurrentIncrBy(t *testing.T) {
	s, err := NewShardedMapStorage(16)
	require.NoError(t, err)

	const n = 1000
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.IncrBy("counter", 1) //nolint:errcheck
		}()
	}
	wg.Wait()

	val, ok := s.Get("counter")
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(n), val)
}

func TestShardedMapStorage_Concurrent(t *testing.T) {
	s, err := NewShardedMapStorage(16)
	require.NoError(t, err)
	var wg sync.WaitGroup

	workers := 100
	ops := 10000

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

			for j := 0; j < ops; j++ {
				key := fmt.Sprintf("key-%d", r.Intn(100))

				switch r.Intn(4) {
				case 0:
					s.Set(key, fmt.Sprintf("val-%d", j), SetOptions{})
				case 1:
					s.Get(key)
				case 2:
					s.Delete(key)
				case 3:
					s.IncrBy(key, 1) //nolint:errcheck
				}
			}
		}(i)
	}

	wg.Wait()
}

func FuzzShardedMapStorage(f *testing.F) {
	f.Add("key1", "val1")
	f.Add("special", "!@#$%^&*()")

	s, _ := NewShardedMapStorage(8) //nolint:errcheck

	f.Fuzz(func(t *testing.T, key string, val string) {
		s.Set(key, val, SetOptions{})

		v, ok := s.Get(key)
		if !ok || v != val {
			t.Errorf("Get failed after Set: key=%q, val=%q", key, val)
		}
	})
}
