package loading

import (
	"sort"
	"sync"
)

// Coordinator tracks named loading keys. It is passed to whoever composes
// the app shell; there is no package-level instance.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]int
}

func NewCoordinator() *Coordinator {
	return &Coordinator{pending: make(map[string]int)}
}

// Register marks key as loading. Registering the same key twice needs two Done calls.
func (c *Coordinator) Register(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[key]++
}

// Done releases one registration of key. Unknown keys are ignored.
func (c *Coordinator) Done(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.pending[key]
	if !ok {
		return
	}
	if n <= 1 {
		delete(c.pending, key)
		return
	}
	c.pending[key] = n - 1
}

// Track registers key and returns the matching Done.
func (c *Coordinator) Track(key string) func() {
	c.Register(key)
	var once sync.Once
	return func() { once.Do(func() { c.Done(key) }) }
}

func (c *Coordinator) Blocking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
