package cache

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrKeyExists = errors.New("key already exists in cache")
)

// Cache is a weighted LRU cache. Once the total weight of the cached items
// exceeds the budget, the least recently used items are evicted.
type Cache interface {
	SetVerbose(verbose bool)
	GetWeight() int
	GetBudget() int
	Insert(key string, value interface{}, weight int) error
	Retrieve(key string) (interface{}, bool)
	Delete(key string) bool
	Clear()
}

type cacheNode struct {
	next   *cacheNode
	prev   *cacheNode
	key    string
	value  interface{}
	weight int
}

type cache struct {
	log *logrus.Entry

	head    *cacheNode
	tail    *cacheNode
	lookup  map[string]*cacheNode
	weight  int
	budget  int
	verbose bool
	mutex   sync.Mutex
}

// NewCache returns a new cache with a given weight budget.
func NewCache(budget int) Cache {
	return &cache{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		lookup: make(map[string]*cacheNode),
		budget: budget,
	}
}

// SetVerbose enables logging of evictions.
func (c *cache) SetVerbose(verbose bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.verbose = verbose
}

func (c *cache) GetWeight() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.weight
}

func (c *cache) GetBudget() int {
	return c.budget
}

// Insert adds a new item to the front of the cache, evicting the least recently
// used items until the cache is back within budget.
//
// Returns ErrKeyExists if the key is already cached.
func (c *cache) Insert(key string, value interface{}, weight int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, found := c.lookup[key]; found {
		return ErrKeyExists
	}

	node := &cacheNode{
		key:    key,
		value:  value,
		weight: weight,
	}
	c.pushFront(node)

	c.lookup[key] = node
	c.weight += weight

	for c.weight > c.budget && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)
		c.weight -= evicted.weight
		delete(c.lookup, evicted.key)

		if c.verbose {
			c.log.WithFields(logrus.Fields{
				"key":          evicted.key,
				"weight":       evicted.weight,
				"spare_weight": c.budget - c.weight,
			}).Debug("evicted cache entry")
		}
	}

	return nil
}

// Retrieve fetches an item by its key and marks it as the most recently used.
func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, found := c.lookup[key]
	if !found {
		return nil, false
	}

	if node != c.head {
		c.unlink(node)
		c.pushFront(node)
	}

	return node.value, true
}

// Delete removes an item by its key, returning whether it was cached.
func (c *cache) Delete(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, found := c.lookup[key]
	if !found {
		return false
	}

	c.unlink(node)
	c.weight -= node.weight
	delete(c.lookup, key)

	return true
}

// Clear removes all items from the cache.
func (c *cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head = nil
	c.tail = nil
	c.lookup = make(map[string]*cacheNode)
	c.weight = 0
}

func (c *cache) pushFront(node *cacheNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *cache) unlink(node *cacheNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}

	node.prev = nil
	node.next = nil
}
