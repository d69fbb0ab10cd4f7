package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeplan/internal/model"
)

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	c.Put(model.Plan{ID: "a", TenantID: "t"})
	c.Put(model.Plan{ID: "b", TenantID: "t"})
	_, ok := c.Get("t", "a")
	require.True(t, ok)
	c.Put(model.Plan{ID: "c", TenantID: "t"})

	_, ok = c.Get("t", "b")
	assert.False(t, ok)
	_, ok = c.Get("t", "a")
	assert.True(t, ok)
	_, ok = c.Get("t", "c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCacheTenantIsolation(t *testing.T) {
	c := NewCache(0)
	c.Put(model.Plan{ID: "a", TenantID: "t1", Stage: model.StagePoints})
	_, ok := c.Get("t2", "a")
	assert.False(t, ok)
	assert.False(t, c.Delete("t2", "a"))
	assert.Empty(t, c.List("t2"))

	c.Put(model.Plan{ID: "a", TenantID: "t1", Stage: model.StageClustered})
	p, ok := c.Get("t1", "a")
	require.True(t, ok)
	assert.Equal(t, model.StageClustered, p.Stage)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Delete("t1", "a"))
	assert.Zero(t, c.Len())
}

func TestCacheReplaceOnlyExisting(t *testing.T) {
	c := NewCache(0)
	assert.False(t, c.Replace(model.Plan{ID: "a", TenantID: "t", Stage: model.StageClustered}))
	assert.Zero(t, c.Len())

	c.Put(model.Plan{ID: "a", TenantID: "t", Stage: model.StagePoints})
	assert.True(t, c.Replace(model.Plan{ID: "a", TenantID: "t", Stage: model.StageClustered}))
	p, ok := c.Get("t", "a")
	require.True(t, ok)
	assert.Equal(t, model.StageClustered, p.Stage)

	require.True(t, c.Delete("t", "a"))
	assert.False(t, c.Replace(model.Plan{ID: "a", TenantID: "t", Stage: model.StageRouted}))
	_, ok = c.Get("t", "a")
	assert.False(t, ok)
}
