package exchange

import (
	"sync"
	"time"
)

// Nonce hands out strictly increasing millisecond values. Concurrent
// signers serialize on it, so a venue never sees a nonce go backwards.
type Nonce struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewNonce() *Nonce {
	return &Nonce{now: time.Now}
}

func (n *Nonce) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	v := n.now().UnixMilli()
	if v <= n.last {
		v = n.last + 1
	}
	n.last = v
	return v
}
