package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore(t *testing.T) {
	store := NewConfigStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.values)
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("key", "value"))

	val, ok := store.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_GetString(t *testing.T) {
	store := NewConfigStore()

	_ = store.Set("str", "hello")
	_ = store.Set("num", 42)

	assert.Equal(t, "hello", store.GetString("str"))
	assert.Equal(t, "", store.GetString("num"))
	assert.Equal(t, "", store.GetString("missing"))
}

func TestConfigStore_GetInt(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 42, 42},
		{"int64", int64(43), 43},
		{"float64", 44.0, 44},
		{"string", "45", 0},
		{"missing", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewConfigStore()
			if tt.value != nil {
				_ = store.Set("key", tt.value)
			}
			assert.Equal(t, tt.want, store.GetInt("key"))
		})
	}
}

func TestConfigStore_GetBool(t *testing.T) {
	store := NewConfigStore()

	_ = store.Set("yes", true)
	_ = store.Set("no", false)
	_ = store.Set("str", "true")

	assert.True(t, store.GetBool("yes"))
	assert.False(t, store.GetBool("no"))
	assert.False(t, store.GetBool("str"))
	assert.False(t, store.GetBool("missing"))
}

func TestConfigStore_GetStringSlice(t *testing.T) {
	store := NewConfigStore()

	_ = store.Set("strings", []string{"a", "b"})
	_ = store.Set("anys", []any{"c", "d", 5})
	_ = store.Set("scalar", "x")

	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("strings"))
	assert.Equal(t, []string{"c", "d"}, store.GetStringSlice("anys"))
	assert.Nil(t, store.GetStringSlice("scalar"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_SaveLoadPath(t *testing.T) {
	store := NewConfigStore()

	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("key", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("key")
		}()
	}
	wg.Wait()
}
