package testutil

import (
	"sync"

	"github.com/roach88/pdaledger/internal/identity"
)

// Identities hands out deterministic keypairs by name, so that a scenario
// run twice produces the same addresses.
//
// The namespace keeps two Identities with different namespaces from
// sharing keys for the same name.
//
// Thread-safety: Identities is safe for concurrent use via internal mutex.
type Identities struct {
	mu        sync.Mutex
	namespace string
	keys      map[string]*identity.Keypair
	order     []string
}

// NewIdentities creates an identity set. An empty namespace is "default".
func NewIdentities(namespace string) *Identities {
	if namespace == "" {
		namespace = "default"
	}
	return &Identities{namespace: namespace, keys: make(map[string]*identity.Keypair)}
}

// Get returns the keypair for name, creating it on first use.
func (ids *Identities) Get(name string) *identity.Keypair {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	if kp, ok := ids.keys[name]; ok {
		return kp
	}
	kp := identity.FromName(ids.namespace + "/" + name)
	ids.keys[name] = kp
	ids.order = append(ids.order, name)
	return kp
}

// Names returns the names handed out so far, in first-use order.
func (ids *Identities) Names() []string {
	ids.mu.Lock()
	defer ids.mu.Unlock()
	return append([]string(nil), ids.order...)
}
