package queue

import "fmt"

// CreditCounter is the single authoritative credit ledger for one
// producer/consumer pair. The producer takes credit before sending, the
// consumer returns it when done; nobody else mutates the balance, so leaks
// and double-returns are detectable at the counter itself.
type CreditCounter struct {
	name      string
	capacity  int
	available int
}

// NewCreditCounter creates a counter holding its full capacity.
func NewCreditCounter(name string, capacity int) *CreditCounter {
	if capacity < 0 {
		capacity = 0
	}
	return &CreditCounter{
		name:      name,
		capacity:  capacity,
		available: capacity,
	}
}

// Name returns the counter name.
func (c *CreditCounter) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Capacity returns the advertised capacity.
func (c *CreditCounter) Capacity() int {
	if c == nil {
		return 0
	}
	return c.capacity
}

// Available returns the credit currently held by the producer side.
func (c *CreditCounter) Available() int {
	if c == nil {
		return 0
	}
	return c.available
}

// Outstanding returns credit currently lent out.
func (c *CreditCounter) Outstanding() int {
	if c == nil {
		return 0
	}
	return c.capacity - c.available
}

// Take withdraws n credits. Returns false when not enough are available.
func (c *CreditCounter) Take(n int) bool {
	if c == nil || n < 0 {
		return false
	}
	if c.available < n {
		return false
	}
	c.available -= n
	return true
}

// Return hands n credits back. Over-returning indicates duplicated
// completion somewhere upstream and is reported rather than absorbed.
func (c *CreditCounter) Return(n int) error {
	if c == nil {
		return fmt.Errorf("credit counter is nil")
	}
	if n < 0 {
		return fmt.Errorf("credit %s: negative return %d", c.name, n)
	}
	if c.available+n > c.capacity {
		return fmt.Errorf("credit %s: return of %d exceeds capacity (%d available of %d)",
			c.name, n, c.available, c.capacity)
	}
	c.available += n
	return nil
}

// Refill restores the counter to full capacity (reset path).
func (c *CreditCounter) Refill() {
	if c == nil {
		return
	}
	c.available = c.capacity
}
