// Package contact implements the Active-Contact Set and Contact
// Statistics (§2 #4, #5).
package contact

import (
	"sync"

	"github.com/aemnet/aemnode/internal/identity"
)

// ActiveSet tracks peers currently engaged in a session, guarded by
// the contacts lock (§5). Membership strictly brackets the pairwise
// protocol (§3 Invariants).
type ActiveSet struct {
	mutex  *sync.Mutex
	active map[identity.AEM]struct{}
}

// NewActiveSet builds an empty set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{
		mutex:  &sync.Mutex{},
		active: make(map[identity.AEM]struct{}),
	}
}

// TryEnter atomically checks-and-inserts aem. It reports false if aem
// was already present, enforcing §8 property 5 (contact exclusivity).
func (a *ActiveSet) TryEnter(aem identity.AEM) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if _, present := a.active[aem]; present {
		return false
	}
	a.active[aem] = struct{}{}
	return true
}

// Leave removes aem from the set.
func (a *ActiveSet) Leave(aem identity.AEM) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	delete(a.active, aem)
}

// Contains reports whether aem currently holds a session. Exposed
// mainly for tests.
func (a *ActiveSet) Contains(aem identity.AEM) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	_, present := a.active[aem]
	return present
}
