// ABOUTME: Thread-safe TTL cache that drops client retries of the same chat message
// ABOUTME: Keys combine sender, session and the client-supplied message id

package dedupe

import (
	"container/list"
	"strconv"
	"sync"
	"time"
)

// sweepInterval is how often the background goroutine drops expired keys.
const sweepInterval = time.Minute

type entry struct {
	key    string
	markAt time.Time
}

// Cache remembers recently seen keys for ttl, holding at most maxSize of them.
// The list is kept in mark order (oldest at front), so both eviction and the
// expiry sweep only ever touch the front.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its expiry sweep. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Key builds the cache key for a client message id sent by userID in a session.
// Two users may reuse the same client id without colliding.
func Key(userID, sessionID int64, clientMessageID string) string {
	return strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(sessionID, 10) + ":" + clientMessageID
}

// seen reports whether key was marked within the TTL, without marking it.
func (c *Cache) seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	return ok && !c.expired(el.Value.(*entry))
}

// CheckAndMark marks key and reports whether it was already marked within
// the TTL. A true result means the caller is looking at a duplicate.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		if !c.expired(el.Value.(*entry)) {
			return true
		}
		c.order.Remove(el)
		delete(c.index, key)
	}

	for c.maxSize > 0 && c.order.Len() >= c.maxSize {
		c.removeFront()
	}
	c.index[key] = c.order.PushBack(&entry{key: key, markAt: c.now()})
	return false
}

// Forget unmarks key so a retry is accepted. Used when the marked message
// could not be stored.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.order.Remove(el)
		delete(c.index, key)
	}
}

// Len returns the number of keys currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close stops the expiry sweep. Safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.markAt) >= c.ttl
}

// removeFront drops the oldest key. Must be called with mu held.
func (c *Cache) removeFront() {
	front := c.order.Front()
	if front == nil {
		return
	}
	c.order.Remove(front)
	delete(c.index, front.Value.(*entry).key)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes expired keys from the front until it meets a live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for front := c.order.Front(); front != nil; front = c.order.Front() {
		if !c.expired(front.Value.(*entry)) {
			return
		}
		c.removeFront()
	}
}
