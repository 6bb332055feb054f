package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericBoundedEvictionScenario(t *testing.T) {
	c := NewGeneric[string](GenericConfig{MaxSize: 3, EnableStatistics: true})

	c.Put("a", "a")
	c.Put("b", "b")
	c.Put("c", "c")
	c.Put("d", "d")

	assert.Equal(t, 3, c.Size())
	stats := c.Statistics()
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, uint64(4), stats.Inserts)

	_, found := c.Get("a")
	assert.False(t, found, "oldest entry should have been evicted")
	v, found := c.Get("d")
	require.True(t, found)
	assert.Equal(t, "d", v)
}

func TestGenericHitMissCounters(t *testing.T) {
	c := NewGeneric[int](DefaultGenericConfig())
	c.Put("x", 1)

	_, _ = c.Get("x")
	_, _ = c.Get("missing")

	stats := c.Statistics()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestGenericRemoveAndClear(t *testing.T) {
	c := NewGeneric[int](DefaultGenericConfig())
	c.Put("x", 1)
	c.Put("y", 2)

	assert.True(t, c.Remove("x"))
	assert.False(t, c.Remove("x"))
	assert.False(t, c.Contains("x"))
	assert.True(t, c.Contains("y"))

	c.Clear()
	assert.Equal(t, 0, c.Size())
	assert.Equal(t, Statistics{}, c.Statistics())
}

func TestGenericUpdateExistingKeyDoesNotEvict(t *testing.T) {
	c := NewGeneric[string](GenericConfig{MaxSize: 2, EnableStatistics: true})
	c.Put("a", "a")
	c.Put("b", "b")
	c.Put("a", "a-updated")

	assert.Equal(t, 2, c.Size())
	assert.Equal(t, uint64(0), c.Statistics().Evictions)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a-updated", v)
}

func TestGenericPublishesMetricsWhenRegistererSet(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewGeneric[int](GenericConfig{
		MaxSize:          2,
		EnableStatistics: true,
		Name:             "test",
		Registerer:       registry,
	})

	c.Put("x", 1)
	_, _ = c.Get("x")
	_, _ = c.Get("missing")

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestGenericWithoutRegistererStaysMetricsFree(t *testing.T) {
	c := NewGeneric[int](DefaultGenericConfig())
	assert.Nil(t, c.metrics)
}
