package suggest

import "sync"

type Snapshot struct {
	Fingerprint string
	Questions   []string
	Err         error
}

// Cache holds the last suggested questions and the schema fingerprint they were generated for.
type Cache struct {
	mu          sync.RWMutex
	fingerprint string
	questions   []string
	err         error
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Lookup(fingerprint string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fingerprint == "" || c.fingerprint != fingerprint {
		return nil, false
	}
	return cloneStrings(c.questions), true
}

func (c *Cache) Store(fingerprint string, questions []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fingerprint = fingerprint
	c.questions = cloneStrings(questions)
	c.err = nil
}

func (c *Cache) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *Cache) Seed(fingerprint string, questions []string) {
	if len(questions) == 0 {
		return
	}
	c.Store(fingerprint, questions)
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{Fingerprint: c.fingerprint, Questions: cloneStrings(c.questions), Err: c.err}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
