package planner

import (
	"container/list"
	"sort"
	"sync"

	"routeplan/internal/metrics"
	"routeplan/internal/model"
)

const DefaultCacheSize = 1024

// Cache holds recent plans in process, least recently used evicted first.
// Plans do not survive a restart.
type Cache struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[string]*list.Element
}

type cacheEntry struct {
	key  string
	plan model.Plan
}

func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, ll: list.New(), items: map[string]*list.Element{}}
}

func cacheKey(tenantID, id string) string { return tenantID + "/" + id }

func (c *Cache) Get(tenantID, id string) (model.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[cacheKey(tenantID, id)]
	if !ok {
		return model.Plan{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).plan, true
}

func (c *Cache) Put(p model.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(p.TenantID, p.ID)
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).plan = p
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, plan: p})
	for c.ll.Len() > c.max {
		last := c.ll.Back()
		c.removeElement(last)
	}
	metrics.PlansCached.Set(float64(c.ll.Len()))
}

// Replace overwrites a plan that is still cached. It reports false, and
// stores nothing, when the plan was deleted or evicted.
func (c *Cache) Replace(p model.Plan) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[cacheKey(p.TenantID, p.ID)]
	if !ok {
		return false
	}
	el.Value.(*cacheEntry).plan = p
	c.ll.MoveToFront(el)
	return true
}

func (c *Cache) Delete(tenantID, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[cacheKey(tenantID, id)]
	if !ok {
		return false
	}
	c.removeElement(el)
	metrics.PlansCached.Set(float64(c.ll.Len()))
	return true
}

// List returns the tenant's plans, most recently updated first.
func (c *Cache) List(tenantID string) []model.Plan {
	c.mu.Lock()
	out := []model.Plan{}
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if p := el.Value.(*cacheEntry).plan; p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*cacheEntry)
	c.ll.Remove(el)
	delete(c.items, e.key)
}
