package vault

import "sync"

// Keyring is an explicit in-process cache of owner DEKs, keyed by owner id.
// The server keeps one Keyring and scopes every lookup to the authenticated
// owner; Forget supports invalidation when an owner's key material changes.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string][]byte)}
}

// Get returns the cached key for owner, or nil if none is cached.
func (k *Keyring) Get(owner string) []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keys[owner]
}

// Put caches a copy of key for owner.
func (k *Keyring) Put(owner string, key []byte) {
	cp := make([]byte, len(key))
	copy(cp, key)
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[owner] = cp
}

// Forget drops the cached key for owner.
func (k *Keyring) Forget(owner string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, owner)
}
