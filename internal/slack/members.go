package slack

import (
	"sync"
	"time"
)

// Member cache defaults.
const (
	defaultMemberCapacity = 512
	defaultMemberTTL      = time.Hour
)

// entry is a list node mapping a Slack member to a directory user id.
type entry struct {
	member  string
	userID  string
	expires time.Time
	prev    *entry
	next    *entry
}

// memberCache is a bounded LRU of resolved Slack members. Entries expire after
// ttl so profile edits in Slack are picked up again.
type memberCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*entry
	head     *entry // most recently used (sentinel)
	tail     *entry // least recently used (sentinel)
}

func newMemberCache(capacity int, ttl time.Duration) *memberCache {
	if capacity < 1 {
		capacity = defaultMemberCapacity
	}
	head, tail := &entry{}, &entry{}
	head.next = tail
	tail.prev = head
	return &memberCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*entry, capacity),
		head:     head,
		tail:     tail,
	}
}

// get returns the cached user id for member. Expired entries are dropped.
func (c *memberCache) get(member string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[member]
	if !ok {
		return "", false
	}
	if c.ttl > 0 && !c.now().Before(e.expires) {
		c.unlink(e)
		delete(c.items, member)
		return "", false
	}
	c.unlink(e)
	c.pushFront(e)
	return e.userID, true
}

// put records member → userID, evicting the least recently used entry when
// full.
func (c *memberCache) put(member, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if e, ok := c.items[member]; ok {
		e.userID = userID
		e.expires = expires
		c.unlink(e)
		c.pushFront(e)
		return
	}

	if len(c.items) >= c.capacity {
		victim := c.tail.prev
		c.unlink(victim)
		delete(c.items, victim.member)
	}
	e := &entry{member: member, userID: userID, expires: expires}
	c.items[member] = e
	c.pushFront(e)
}

func (c *memberCache) remove(member string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[member]; ok {
		c.unlink(e)
		delete(c.items, member)
	}
}

func (c *memberCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// caller must hold mu
func (c *memberCache) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}

// caller must hold mu
func (c *memberCache) pushFront(e *entry) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}
