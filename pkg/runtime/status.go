package runtime

import (
	"sync"

	"github.com/code-payments/endpoint-mock/pkg/cache"
	"github.com/code-payments/endpoint-mock/pkg/solana"
)

// SignatureStatus is the recorded outcome of a processed transaction.
type SignatureStatus struct {
	Slot uint64
	Err  *solana.TransactionError
}

type statusEntry struct {
	pending bool
	status  SignatureStatus
}

// statusCache remembers processed signatures so duplicates can be rejected
// and clients can poll for results. A signature is reserved while its
// transaction executes, and is invisible to readers until recorded.
type statusCache struct {
	mu      sync.RWMutex
	entries cache.Cache
}

func newStatusCache(size int) *statusCache {
	return &statusCache{
		entries: cache.NewCache(size),
	}
}

// reserve claims sig for a transaction about to execute. It returns false if
// the signature was already seen.
func (c *statusCache) reserve(sig solana.Signature) bool {
	err := c.entries.Insert(sig.String(), &statusEntry{pending: true}, 1)
	return err == nil
}

// release forgets a reservation for a transaction that never executed.
func (c *statusCache) release(sig solana.Signature) {
	c.entries.Delete(sig.String())
}

// record stores the final status of a reserved signature. Signatures that
// were never reserved are inserted directly.
func (c *statusCache) record(sig solana.Signature, status SignatureStatus) {
	value, ok := c.entries.Retrieve(sig.String())
	if !ok {
		entry := &statusEntry{status: status}
		if err := c.entries.Insert(sig.String(), entry, 1); err == nil {
			return
		}

		// Lost a race against another writer, so fall back to updating it
		value, ok = c.entries.Retrieve(sig.String())
		if !ok {
			return
		}
	}

	entry := value.(*statusEntry)

	c.mu.Lock()
	entry.pending = false
	entry.status = status
	c.mu.Unlock()
}

func (c *statusCache) get(sig solana.Signature) (*SignatureStatus, bool) {
	value, ok := c.entries.Retrieve(sig.String())
	if !ok {
		return nil, false
	}

	entry := value.(*statusEntry)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry.pending {
		return nil, false
	}

	status := entry.status
	return &status, true
}
